// Package server holds the HTTP intake server configuration.
//
// The intake itself is thin glue: already-validated mutation intents and
// diff requests arrive over HTTP and are handed to the feature services.
// The engineering lives behind it, in feature/sheets.
package server
