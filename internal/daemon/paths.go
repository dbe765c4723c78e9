package daemon

import "path/filepath"

// Runtime files live under <home>/protected so a home wipe of board data
// can spare them: daemon.pid, daemon.lock, daemon.addr, daemon.log.
const runSubdir = "protected"

func protectedDir(home string) string {
	return filepath.Join(home, runSubdir)
}

func runFile(home, name string) string {
	return filepath.Join(home, runSubdir, name)
}

func pidPath(home string) string  { return runFile(home, "daemon.pid") }
func lockPath(home string) string { return runFile(home, "daemon.lock") }
func addrPath(home string) string { return runFile(home, "daemon.addr") }
