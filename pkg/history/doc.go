// Package history implements the ledger of applied migration scripts.
//
// The ledger lives in a table inside the target database (strata_history by
// default) with exactly these columns:
//
//	installed_rank  position in the ledger, strictly increasing
//	version         script version, NULL for repeatable scripts
//	description     script description
//	kind            versioned, repeatable or baseline
//	checksum        CRC-32 of the script when it was applied
//	installed_by    informational, may be empty
//	installed_on    when the attempt finished
//	execution_time  duration in milliseconds
//	success         whether the attempt succeeded
//
// Every attempt to apply a script is appended, successful or not. Records are
// never changed afterwards except by an explicit Repair, which can delete
// failed records or realign stored checksums.
//
// Writers are serialized by an advisory lock: a row in a second table
// (strata_lock by default). WithLock acquires it with a bounded wait and
// releases it on every path. The holder refreshes the row's heartbeat while it
// works, so only rows abandoned by a crashed run ever become stale.
package history
