// Interface contract checks for the storage package. Backend conformance
// tests live with the sqlite implementation.
package storage

// Every Transaction method must keep the exact signature of its Storage
// counterpart so the composite import path can run unchanged inside and
// outside RunInTransaction.
var _ Transaction = (Storage)(nil)
