package firestore

// ValidDocumentID exposes validDocumentID for testing
func ValidDocumentID(id string) bool {
	return validDocumentID(id)
}

// Unavailable exposes unavailable for testing
func Unavailable(err error) error {
	return unavailable(err)
}
