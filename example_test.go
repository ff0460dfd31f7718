package formbot_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/formbot"
	"github.com/aretw0/formbot/pkg/dsl"
)

// ExampleNew_memory runs a form declared in code on the in-memory store.
// Without a generator every message comes from the built-in templates.
func ExampleNew_memory() {
	// 1. Declare the form
	b := dsl.New()
	b.Add("feedback").
		Name("Product Feedback").
		Number("rating", "How would you rate us from 1 to 10?").
		YesNo("recommend", "Would you recommend us to a friend?")

	loader, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}

	// 2. Initialize the Bot with it as the default form
	bot, err := formbot.New(
		formbot.WithForms(loader),
		formbot.WithDefaultForm("feedback"),
	)
	if err != nil {
		log.Fatal(err)
	}

	// 3. Start and answer; "eleven" is rejected and asked again
	ctx := context.Background()
	start, err := bot.StartSession(ctx, "user-1", "")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(start.Message)

	for _, answer := range []string{"eleven", "9", "Yes"} {
		res, err := bot.SubmitAnswer(ctx, "user-1", answer)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res.Message)
	}

	// Output:
	// I'm collecting information for Product Feedback. How would you rate us from 1 to 10?
	// Please enter a whole number from 1 to 10. How would you rate us from 1 to 10?
	// Would you recommend us to a friend?
	// Thank you for completing the Product Feedback form. Here's a summary of the information you provided:
	//
	// rating: 9
	// recommend: yes
	//
	// This information has been submitted successfully.
}
