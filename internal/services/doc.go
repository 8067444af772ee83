// Package services implements the upload pipeline and the read and delete
// operations around reports.
//
// # Services
//
//	IndicatorService  computes and reads IndicatorValues
//	ReportService     runs an upload through its stages and owns cascading soft deletes
//	OwnerService      creates and resolves owner accounts
//
// Services depend on the narrow repository interfaces declared in interfaces.go,
// take a *slog.Logger by injection and return *errors.AppError values for every
// condition a caller is expected to handle (BadRequest, NotFound, Forbidden).
// Persistence failures are wrapped as storage errors.
//
// # Upload pipeline
//
// ReportService.CreateReport moves an upload through
//
//	uploading -> validating -> computing_indicators -> classifying -> persisted
//
// An upload ends in "rejected" when it fails while uploading or validating, and in
// "failed" when it fails later. Every transition is logged, timed and published to
// the owner's event stream. Nothing is rolled back: indicator values computed before
// a failure stay in place.
package services
