package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	scp "github.com/bramvdbogaerde/go-scp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/ayusman/robowave/internal/logging"
)

// SCPOptions configures the SSH copy to the robot.
type SCPOptions struct {
	Host       string
	Port       int
	User       string
	Password   string
	KeyFile    string
	KnownHosts string
	RemotePath string
	Timeout    time.Duration
}

// SCPTransport uploads each document over SSH with scp.
// The upload lands in a temporary file beside RemotePath and is then renamed
// over it, so the robot never reads a half-written command.
type SCPTransport struct {
	opts   SCPOptions
	config *ssh.ClientConfig
	logger *zap.Logger
}

// NewSCPTransport prepares the SSH client configuration. No connection is
// made until the first Deliver.
func NewSCPTransport(opts SCPOptions, logger *zap.Logger) (*SCPTransport, error) {
	logger = logging.OrNop(logger)

	var auth []ssh.AuthMethod
	if opts.KeyFile != "" {
		key, err := os.ReadFile(opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse key file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if opts.Password != "" {
		auth = append(auth, ssh.Password(opts.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("scp: no password or key file configured")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if opts.KnownHosts != "" {
		cb, err := knownhosts.New(opts.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKey = cb
	} else {
		logger.Warn("scp host key not verified; set scp.known_hosts to pin it", zap.String("host", opts.Host))
	}

	return &SCPTransport{
		opts: opts,
		config: &ssh.ClientConfig{
			User:            opts.User,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         opts.Timeout,
		},
		logger: logger,
	}, nil
}

// Deliver uploads data to RemotePath.
func (t *SCPTransport) Deliver(ctx context.Context, data []byte) error {
	addr := net.JoinHostPort(t.opts.Host, strconv.Itoa(t.opts.Port))

	dialer := net.Dialer{Timeout: t.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, t.config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	remote := t.opts.RemotePath
	if err := replaceRemote(ctx, newSCPSession(client), remote, data); err != nil {
		return err
	}

	t.logger.Debug("command uploaded", zap.String("host", addr), zap.String("path", remote))
	return nil
}

// remoteFS is what Deliver needs from an SSH connection.
type remoteFS interface {
	CopyFile(ctx context.Context, r io.Reader, remotePath, permissions string) error
	Run(cmd string) error
}

// replaceRemote uploads data beside remote under a temporary name and then
// renames it over remote.
func replaceRemote(ctx context.Context, fs remoteFS, remote string, data []byte) error {
	tmp := path.Join(path.Dir(remote), fmt.Sprintf(".%s.%s.tmp", path.Base(remote), uuid.NewString()))

	if err := fs.CopyFile(ctx, bytes.NewReader(data), tmp, "0644"); err != nil {
		return fmt.Errorf("upload %s: %w", tmp, err)
	}
	if err := fs.Run("mv -f " + shellQuote(tmp) + " " + shellQuote(remote)); err != nil {
		return fmt.Errorf("rename %s: %w", remote, err)
	}
	return nil
}

type scpSession struct {
	client *ssh.Client
}

func newSCPSession(client *ssh.Client) *scpSession {
	return &scpSession{client: client}
}

func (s *scpSession) CopyFile(ctx context.Context, r io.Reader, remotePath, permissions string) error {
	c, err := scp.NewClientBySSH(s.client)
	if err != nil {
		return err
	}
	// Closing c would close the shared SSH client; Deliver owns it.
	return c.CopyFile(ctx, r, remotePath, permissions)
}

func (s *scpSession) Run(cmd string) error {
	sess, err := s.client.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	if out, err := sess.CombinedOutput(cmd); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
