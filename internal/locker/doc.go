// Package locker implements a file-backed priority locker.
//
// A lock is taken in two phases. Declare records the intent to lock a set
// of resources and is refused when a conflicting lock is held or a more
// urgent intent is pending. Commit turns the intent into a lock after
// checking again. Release drops either. Claims live as YAML files in the
// lock directory, so separate processes sharing the directory see each
// other; claims of processes that are no longer running are removed.
//
// Lower priority values are more urgent. The resource "*" overlaps every
// other resource.
package locker
