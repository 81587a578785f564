// Package commands defines the payctl CLI, which drives the payment engine
// directly against Horizon without going through the HTTP API.
//
// Commands
//
//   - validate  Check an account ID or federation alias
//   - convert   Convert between lumens and stroops
//   - balance   Show the cached balance of an account
//   - history   List recent native payments of an account
//   - send      Send a single payment from the configured signer
//   - bulk      Send a payroll batch read from a CSV file
//   - records   List payment outcomes stored in the records database
//
// Settings are read from the environment like the server does, and every
// setting except the signer secret can be overridden with a persistent flag.
package commands
