package namenode

import (
	"github.com/yaroslav/nnctl/internal/config"
	"github.com/yaroslav/nnctl/internal/runner"
)

// hdfsClient builds hdfs client commands that run as the HDFS user.
type hdfsClient struct {
	cfg    *config.Config
	binary string
}

func (h hdfsClient) command(args ...string) runner.Command {
	argv := []string{h.binary}
	if h.cfg.HDFS.ConfDir != "" {
		argv = append(argv, "--config", h.cfg.HDFS.ConfDir)
	}
	var path []string
	if h.cfg.HDFS.BinDir != "" {
		path = []string{h.cfg.HDFS.BinDir}
	}
	return runner.Command{
		Args: append(argv, args...),
		User: h.cfg.HDFS.User,
		Path: path,
	}
}

// dfsadmin targets this host's NameNode explicitly when HA is enabled,
// otherwise the default filesystem.
func (h hdfsClient) dfsadmin(args ...string) runner.Command {
	return h.command(append([]string{"dfsadmin", "-fs", h.filesystem()}, args...)...)
}

func (h hdfsClient) filesystem() string {
	if h.cfg.HA.Enabled {
		return "hdfs://" + h.cfg.HA.RPCAddress
	}
	return h.cfg.HDFS.NamenodeAddress
}

func (h hdfsClient) haadmin(args ...string) runner.Command {
	argv := []string{"haadmin"}
	if h.cfg.HA.Nameservice != "" {
		argv = append(argv, "-ns", h.cfg.HA.Nameservice)
	}
	return h.command(append(argv, args...)...)
}

func (h hdfsClient) dfs(args ...string) runner.Command {
	return h.command(append([]string{"dfs"}, args...)...)
}
