package fusefs

import (
	"fmt"
	"os"

	"github.com/gingerrexayers/rpack-go/internal/rpack/lib"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"
)

// DefaultFsName is the filesystem name reported to the kernel.
const DefaultFsName = "rpackage"

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted. It is
	// created if it does not exist.
	Mountpoint string

	// Archive is the fully built archive to serve. It must not be
	// modified once mounted.
	Archive *lib.Archive

	// FsName defaults to DefaultFsName.
	FsName string

	ReadPolicy ReadPolicy

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Debug logs every protocol request.
	Debug bool

	// Logger receives diagnostic messages. If nil, a no-op logger is used.
	Logger *zap.Logger
}

// Mount mounts the archive read-only at the configured mountpoint and starts
// serving requests in the background. The caller must call Unmount on the
// returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Archive == nil {
		return nil, fmt.Errorf("archive is required")
	}
	if options.FsName == "" {
		options.FsName = DefaultFsName
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	adapter := NewAdapter(options.Archive, AdapterOptions{
		ReadPolicy: options.ReadPolicy,
		Logger:     options.Logger,
	})
	server, err := fuse.NewServer(NewFileSystem(adapter), options.Mountpoint, &fuse.MountOptions{
		FsName:             options.FsName,
		Name:               "rpack",
		Options:            []string{"ro"},
		AllowOther:         options.AllowOther,
		DisableReadDirPlus: true,
		Debug:              options.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	go server.Serve()
	if err := server.WaitMount(); err != nil {
		server.Unmount()
		return nil, fmt.Errorf("waiting for mount at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("archive mounted",
		zap.String("mountpoint", options.Mountpoint),
		zap.String("fsname", options.FsName),
		zap.Stringer("read_policy", options.ReadPolicy))
	return server, nil
}
