/*
Package dsl provides a Go DSL for programmatically constructing Loom documents.

It lets developers describe blueprints, operators and connections with a fluent
builder instead of YAML or JSON files. This is useful for generated flows, unit
tests, and getting type-checked construction from the IDE.

Example usage:

	b := dsl.New("text-pipeline")

	main := b.Blueprint("main").
		In("{text: string}").
		Out("{result: string}")

	main.Operator("upper").Uses("uppercase")
	main.Operator("trim").
		Ports("{value: string}", "{value: string}")

	main.Connect("in.text", "upper.in.value").
		Connect("upper.out.value", "trim.in.value").
		Connect("trim.out.value", "out.result")

	doc, err := b.Build()
	// ... save doc or hand it to document.Import
*/
package dsl
