// Package database provides the MySQL connection used by the applied-batch
// journal. The connection is optional at runtime; when absent the system
// runs without an audit trail but is otherwise fully functional.
package database
