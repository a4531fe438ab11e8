/*
Package domain contains the persisted document model of Loom.

A Document is a set of blueprints. Each blueprint declares its own in/out
ports, the operators placed inside it and the connections between their
ports. Operators are built either from a library Definition or, when they
reference another blueprint of the same document, as instances of it.

The package only describes data. Building a live graph from a document is
the job of package document; checking connections is the job of package flow.

# Key Entities

  - Document: the unit stored by a DocumentStore.
  - Blueprint: ports, operators and connections of one editable graph.
  - Operator: a placed node with its property values.
  - Connection: a link between two ports, addressed by relative dot-paths.
  - Definition: a reusable operator template loaded from a library.
*/
package domain
