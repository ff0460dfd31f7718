/*
Package dsl provides a Go DSL for programmatically constructing formbot forms.

It is an alternative to YAML or JSON form files, useful for built-in forms,
generated forms and tests.

Example usage:

	package main

	import (
		"github.com/aretw0/formbot"
		"github.com/aretw0/formbot/pkg/dsl"
	)

	func main() {
		b := dsl.New()

		b.Add("feedback").
			Name("Product Feedback").
			Number("rating", "How would you rate us from 1 to 10?").
			YesNo("recommend", "Would you recommend us to a friend?").
			Text("comments", "Anything else you'd like to tell us?").Optional()

		// The resulting loader can be passed to formbot.WithForms.
		loader, err := b.Build()
		if err != nil {
			panic(err)
		}
		bot, err := formbot.New(formbot.WithForms(loader), formbot.WithDefaultForm("feedback"))
		// ...
	}
*/
package dsl
