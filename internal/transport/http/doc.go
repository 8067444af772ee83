// Package http implements the HTTP handlers of the datafit API.
// Handlers stay thin: they parse the request, call a service and render the
// result. Errors are passed to the shared ErrorHandler, which renders them as
// RFC 7807 problem details.
//
// # Routes
//
//	POST   /api/v1/reports                                    upload a spreadsheet
//	GET    /api/v1/reports                                    list own reports
//	GET    /api/v1/reports/{reportID}                         report with columns and values
//	GET    /api/v1/reports/{reportID}/file                    original file
//	GET    /api/v1/reports/{reportID}/summary.csv             indicator table as CSV
//	DELETE /api/v1/reports/{reportID}                         soft-delete a report
//	DELETE /api/v1/reports/{reportID}/columns/{columnID}      soft-delete a column
//	GET    /api/v1/reports/{reportID}/columns/{columnID}/indicators
//	GET    /api/v1/reports/{reportID}/columns/{columnID}/indicators/{valueID}
//	DELETE /api/v1/reports/{reportID}/columns/{columnID}/indicators/{valueID}
//	GET    /api/v1/reports/{reportID}/columns/{columnID}/indicators/by-name/{name}
//	GET    /api/v1/indicators                                 indicator catalog
//	GET    /api/v1/admin/owners/{ownerID}/reports             admin only
//
// Every /api/v1 route expects an authenticated principal in the request
// context, see middleware.Authenticate.
package http
