/*
Package formbot runs conversational forms: it asks a user a sequence of typed questions,
validates each answer, and keeps the collected answers in a durable per-user record.

# Concept

A Form is an ordered list of typed fields. Starting a form opens a Session for the user;
each message the user sends while that session is in progress is an answer to the current
field. Accepted answers advance the session; rejected answers produce a retry prompt. When
the last field is answered the session completes and the user gets a summary.

Wording is produced by an optional text-generation service (Mistral or Gemini). Every
generated message has a template fallback, so the form always progresses even when the
service is down or no key is configured. Answer validation uses the same service and falls
back to deterministic per-type rules.

Messages that are not answers to an active session can be relayed to the generation
service as free chat.

# Usage

	bot, err := formbot.New(
		formbot.WithStore(file.New("./data")),
		formbot.WithGenerator(mistral.New(os.Getenv("MISTRAL_API_KEY"))),
	)
	if err != nil {
		log.Fatal(err)
	}

	start, err := bot.StartSession(ctx, "user-1", "onboarding")
	fmt.Println(start.Message)

	res, err := bot.SubmitAnswer(ctx, "user-1", "Jane Doe")
	fmt.Println(res.Message)

Transports (Discord, HTTP, websocket, MCP, console) live under pkg/adapters and pkg/runner
and only translate between their wire format and the Bot API.
*/
package formbot
