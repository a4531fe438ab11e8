/*
Package loom is the core of a typed dataflow editor.

Documents hold blueprints: graphs of operators whose ports carry structural
types. Loom builds a live graph from a document, checks every connection
against the types, streams and generics on both ends, and propagates type
changes through the graph as the user edits it.

# Concept

A Workspace keeps the documents being edited and the operator library they
draw from. Every question about a document (may these two ports connect,
what type does this port carry now) is answered by importing it into a live
flow.Graph, so stored documents stay plain data. Transports such as the
HTTP and MCP adapters talk to a Workspace through the ports.Editor interface.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/loom"
		"github.com/aretw0/loom/pkg/domain"
		"github.com/aretw0/loom/pkg/dsl"
	)

	func main() {
		// Operators come from a Loam repository of definitions.
		ws, err := loom.New("./library")
		if err != nil {
			log.Fatal(err)
		}
		ctx := context.Background()

		b := dsl.New("pipeline")
		main := b.Blueprint("main").In("{text: string}").Out("{result: string}")
		main.Operator("upper").Uses("uppercase")
		main.Connect("in.text", "upper.in.value")
		doc, err := b.Build()
		if err != nil {
			log.Fatal(err)
		}
		if _, err := ws.SaveDocument(ctx, doc); err != nil {
			log.Fatal(err)
		}

		res, err := ws.Check(ctx, doc.ID, domain.ConnectionRequest{
			Blueprint: "main", From: "upper.out.value", To: "out.result",
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res.Allowed)
	}
*/
package loom
