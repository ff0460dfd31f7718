/*
Package runner runs a formbot conversation on a local console.

A Runner reads lines through an IOHandler, routes slash commands (/start, /cancel,
/forms, /help, /quit) itself and hands everything else to the bot, which answers the
active form or relays free chat. Bot output is written back through the same handler.

Ctrl+C while the bot is generating interrupts that turn only; Ctrl+C at the prompt
ends the run.

# Handlers

  - TextHandler: interactive text with an optional markdown renderer.
  - JSONHandler: JSON Lines, for scripting and tests.

# Usage

	r := runner.NewRunner(bot,
		runner.WithUserID("console"),
		runner.WithForm("onboarding"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}

A Sanitizer is shared by every transport: it bounds input size and strips control
characters. Each transport takes its own value (WithSanitizer and friends), so the limit
configured by FORMBOT_MAX_INPUT_SIZE travels with the transport rather than the process.
*/
package runner
