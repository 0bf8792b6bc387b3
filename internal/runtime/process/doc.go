// Package process provides a launcher that spawns the supervised server as a
// local child process.
//
// On unix the child is placed in its own process group and termination signals
// the whole group, so helper processes forked by the server go down with it. On
// Windows only the direct child is killed; grandchildren may survive and must be
// cleaned up separately.
package process
