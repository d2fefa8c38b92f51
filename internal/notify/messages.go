package notify

// User-facing notice texts.
const (
	MsgWelcome        = "Welcome to Water Level Logger! Start by logging your first water level reading."
	MsgRequired       = "Please fill in all required fields."
	MsgLogged         = "Water level logged successfully!"
	MsgUpdated        = "Water level updated successfully!"
	MsgCancelled      = "Entry cancelled."
	MsgSaveFailed     = "Error saving water level. Please try again."
	MsgConfirmDelete  = "Are you sure you want to delete this entry?"
	MsgDeleted        = "Entry deleted successfully."
	MsgDeleteFailed   = "Error deleting entry. Please try again."
	MsgConfirmClear   = "Are you sure you want to clear all data? This action cannot be undone."
	MsgCleared        = "All data has been cleared."
	MsgClearFailed    = "Error clearing data. Please try again."
	MsgNoExportData   = "No data to export."
	MsgSampleAdded    = "Sample data added for demonstration!"
	MsgEditing        = "Entry loaded for editing. Submit the corrected reading to save it."
	MsgLoadFailed     = "Error loading data. Using local storage."
	MsgRemoteFallback = "Remote storage unavailable. Changes are kept locally."
)
