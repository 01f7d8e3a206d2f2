// Package registry indexes node types for lookup by name.
//
// A node library builds its types with the portgraph factories and exports
// them as a Package. A Creator maps domains to packages:
//
//	c := registry.NewCreator()
//	if err := c.Register("standard", standard.Package()); err != nil {
//	    return err
//	}
//	n, err := c.New("standard", "if", portgraph.WithLabel("check"))
//
// Registry is the generic RWMutex map both are built on.
package registry
