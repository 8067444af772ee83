// Package files stores uploaded spreadsheets.
//
// Two backends share the same method set:
//
// LocalStore keeps files under a base directory on disk.
//
// S3Store keeps files in an S3 bucket and materializes them into a local
// cache directory when a filesystem path is needed.
//
// Keys are slash separated and relative, e.g.
// "7/report_files/<upload id>/sales.xlsx". Use ReportKey to build them.
// Stores are write-once: saving to a key that already holds a file fails
// with ErrExists.
//
// Example usage:
//
//	store, err := files.NewLocalStore("data/uploads", logger)
//	link, err := store.Save(ctx, files.ReportKey(ownerID, uploadID, "sales.xlsx"), r)
//	path, err := store.LocalPath(ctx, link)
package files
