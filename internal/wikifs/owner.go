package wikifs

import (
	"os"
	"strconv"
)

// Owner returns the uid and gid reported on every node. PUID and PGID
// override the process owner, as set by container images that map the host
// user.
func Owner() (uid, gid uint32) {
	return envID("PUID", os.Getuid()), envID("PGID", os.Getgid())
}

func envID(name string, fallback int) uint32 {
	if v := os.Getenv(name); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err == nil {
			adapterLogger.Debug("Using %s from environment: %d", name, id)
			return uint32(id)
		}
		adapterLogger.Warn("Ignoring invalid %s %q", name, v)
	}
	if fallback < 0 {
		return 0
	}
	return uint32(fallback)
}
