package bot

// Reply-keyboard affordances shown to end users. The labels double as the
// recognized trigger text, so they must stay in sync with the keyboards.
const (
	ButtonCompose = "✍️ Write a request"
	ButtonSubmit  = "📨 Submit request"
	ButtonPhone   = "📱 Share phone number"
)

// Admin reply-keyboard labels.
const (
	ButtonAdminRequests = "📨 Requests"
	ButtonAdminPhones   = "📞 Phones"
	ButtonAdminExport   = "🔄 CSV export"
	ButtonAdminSearch   = "🔍 Search"
)

// User-facing copy.
const (
	msgWelcome         = "Hello! 👋\nTo use the bot, please share your phone number first."
	msgNeedPhone       = "Please share your phone number first, then you can submit a request."
	msgPhoneSaved      = "Thank you! ✅ You can now write your request and attach a photo to it."
	msgComposePrompt   = "Write your request text. When you are done, press *\"" + ButtonSubmit + "\"* below."
	msgSubmitted       = "✅ Your request has been sent! You can write another one any time."
	msgGuidance        = "Press *“" + ButtonCompose + "”* below to write a request."
	msgContactMismatch = "Please share *your own* phone number using the '" + ButtonPhone + "' button."
	msgAdminNoContact  = "As the administrator you do not need to share a contact."
)

// Admin-facing copy.
const (
	msgAdminWelcome      = "👨‍💼 Welcome to the admin panel!"
	msgAdminMenu         = "🛠 Admin menu"
	msgAdminHome         = "🛠 *Admin menu*\nChoose a section:"
	msgAdminNoRequests   = "📨 No requests yet."
	msgAdminNoPhones     = "📞 The phone list is empty."
	msgAdminSearchPrompt = "🔍 Search: please send a numeric *UserID*."
	msgAdminSearchNaN    = "Send a numeric UserID."
	msgAdminSearchMiss   = "Not found."
	msgAdminOnly         = "Admins only."
	msgAdminReqDeleted   = "Request deleted."
	msgAdminPhoneCleared = "Phone removed."
	msgAdminCSVSent      = "CSV files sent."
	msgAdminCSVFailed    = "Error: CSV export failed."
)
