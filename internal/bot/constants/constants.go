package constants

const (
	// Buttons.
	VerifyButtonCustomID         = "verify_button"
	ConfirmBookingButtonCustomID = "confirm_booking_button"

	// Embed colors.
	BrandEmbedColor   = 0x5865F2
	SuccessEmbedColor = 0x57F287
	WarningEmbedColor = 0xFEE75C
	ErrorEmbedColor   = 0xED4245

	// Welcome prompt.
	WelcomeMessageFile = "welcome_message.json"
)
