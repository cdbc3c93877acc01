// Command castsync reconciles media server cast lists against a metadata API
// and a regional film database.
//
// Common workflows:
//
//	castsync config init            # write a sample config
//	castsync reconcile 42 --dry-run # preview one item
//	castsync enqueue 42 43 44       # queue items for the worker
//	castsync run                    # drain the queue until interrupted
//	castsync queue list -s failed   # inspect failures
//	castsync identity show tt0113277
package main
