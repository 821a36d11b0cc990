package poller

// Canned replies sent by the dispatcher.
const (
	replyWelcome = "👋 Hello! I'm connected to a Databricks AI model. Send me a message and I'll respond!"

	replyHelp = "💬 Just send me any message and I'll process it through the Databricks AI model.\n\n" +
		"Commands:\n" +
		"/start - Welcome message\n" +
		"/help - This help message\n" +
		"/status - Check bot status"

	replyStatus = "✅ Bot is running\n🔗 Endpoint: %s\n🔄 Mode: %s\n📊 Last update ID: %d"

	replyGenerationFailed = "Sorry, I encountered an error: %s"

	replyInternalError = "Sorry, I encountered an error processing your message. Please try again."

	replyRateLimited = "You're sending messages too quickly. Please wait a moment and try again."
)

// ModePolling is the delivery mode label reported by /status.
const ModePolling = "Polling"
