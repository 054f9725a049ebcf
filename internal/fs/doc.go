// Package fs provides the file abstraction a container sits on.
//
//   - [File]: an open file with positional read/write, sync and truncate
//   - [FileSystem]: open, stat and remove
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test utility that injects write, sync and truncate failures
//
// [Lock] and [Unlock] take an advisory flock on unix so two processes
// cannot open the same container for writing.
//
// No context.Context parameters: local file operations are not
// interruptible at the syscall level.
package fs
