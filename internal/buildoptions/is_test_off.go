//go:build !arxvm_testing

package buildoptions

// IstTest true if currently running unit tests. This can be used to
// insert the "test-time" assertions in the main code as `if buildoptions.IstTest { ... }` block,
// which will be optimized out by the final binary of arxvm users.
const IstTest = false

// CallStackCeiling bounds the VM's call-frame stack depth. CAL/OBJ_CALL_METHOD/
// OBJ_NEW all push a frame; exceeding this is an unrecoverable stack-overflow trap
// rather than an unbounded Go-stack recursion.
const CallStackCeiling = 2000
