package domain

import "strings"

// UploadedFile is a file received with a request and staged in the upload
// temp directory until it is moved into the image store.
type UploadedFile struct {
	OriginalName string
	StorageName  string
	TempPath     string
}

// Extension returns the text after the last dot of the original filename.
// A name without a dot yields the whole name.
func (f UploadedFile) Extension() string {
	if i := strings.LastIndexByte(f.OriginalName, '.'); i >= 0 {
		return f.OriginalName[i+1:]
	}
	return f.OriginalName
}

// PermanentName is the filename the upload is stored under: the storage name
// followed by the original extension.
func (f UploadedFile) PermanentName() string {
	return f.StorageName + "." + f.Extension()
}
