package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/kurtbuilds/cook/pkg/log"
	"github.com/kurtbuilds/cook/pkg/types"
)

// SSH is the shell+SFTP transport: one multiplexed ssh.Client per host, one
// logical session per command, and a lazily-opened SFTP subsystem for file
// transfer.
type SSH struct {
	host   string
	client *ssh.Client
	logger zerolog.Logger

	mu   sync.Mutex
	sftp *sftp.Client
}

// Connect dials the destination and authenticates. Destination is
// user@host[:port] or an ssh_config alias; missing pieces are filled from
// ssh_config and its defaults.
func Connect(ctx context.Context, destination string) (*SSH, error) {
	dest, err := resolveDestination(destination)
	if err != nil {
		return nil, err
	}

	var auth []ssh.AuthMethod
	if keyAuth := identityFileAuth(dest.identity); keyAuth != nil {
		auth = append(auth, keyAuth)
	}
	if agentAuth := sshAgentAuth(); agentAuth != nil {
		auth = append(auth, agentAuth)
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("%s: no usable SSH auth (no identity file, no agent)", destination)
	}

	hostKeys, err := knownhosts.New(expandHome("~/.ssh/known_hosts"))
	if err != nil {
		return nil, fmt.Errorf("%s: load known_hosts: %w", destination, err)
	}

	config := &ssh.ClientConfig{
		User:            dest.user,
		Auth:            auth,
		HostKeyCallback: hostKeys,
	}

	addr := net.JoinHostPort(dest.host, dest.port)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: dial %s: %w", destination, addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: ssh handshake: %w", destination, err)
	}

	return &SSH{
		host:   destination,
		client: ssh.NewClient(sshConn, chans, reqs),
		logger: log.WithHost(destination),
	}, nil
}

func (s *SSH) Host() string {
	return s.host
}

func (s *SSH) Run(ctx context.Context, argv []string, stdin io.Reader) (types.CommandResult, error) {
	if len(argv) == 0 {
		return types.CommandResult{}, fmt.Errorf("%s: empty argv", s.host)
	}

	session, err := s.client.NewSession()
	if err != nil {
		return types.CommandResult{}, fmt.Errorf("%s: open session: %w", s.host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	cmd := shellJoin(argv)
	s.logger.Debug().Str("cmd", cmd).Msg("run")

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return types.CommandResult{ExitCode: -1}, ctx.Err()
	case err := <-done:
		exitCode := 0
		if err != nil {
			exitErr, ok := err.(*ssh.ExitError)
			if !ok {
				return types.CommandResult{}, fmt.Errorf("%s: run %s: %w", s.host, argv[0], err)
			}
			exitCode = exitErr.ExitStatus()
		}
		return types.CommandResult{
			ExitCode: exitCode,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
		}, nil
	}
}

func (s *SSH) Put(ctx context.Context, remotePath string, data []byte) error {
	return s.PutStream(ctx, remotePath, bytes.NewReader(data))
}

func (s *SSH) PutStream(ctx context.Context, remotePath string, r io.Reader) error {
	parent := filepath.Dir(remotePath)
	result, err := s.Run(ctx, []string{"mkdir", "-p", parent}, nil)
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("%s: mkdir -p %s: %s", s.host, parent, result.Stderr)
	}

	client, err := s.sftpClient()
	if err != nil {
		return err
	}
	f, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("%s: create %s: %w", s.host, remotePath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("%s: write %s: %w", s.host, remotePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%s: close %s: %w", s.host, remotePath, err)
	}
	return nil
}

func (s *SSH) Stat(ctx context.Context, remotePath string) (types.FileInfo, error) {
	client, err := s.sftpClient()
	if err != nil {
		return types.FileInfo{}, err
	}
	fi, err := client.Lstat(remotePath)
	if err != nil {
		if os.IsNotExist(err) {
			return types.FileInfo{}, nil
		}
		return types.FileInfo{}, fmt.Errorf("%s: stat %s: %w", s.host, remotePath, err)
	}
	info := types.FileInfo{
		Exists:    true,
		IsFile:    fi.Mode().IsRegular(),
		IsDir:     fi.IsDir(),
		IsSymlink: fi.Mode()&fs.ModeSymlink != 0,
		Size:      fi.Size(),
		Mode:      uint32(fi.Mode().Perm()),
	}
	if stat, ok := fi.Sys().(*sftp.FileStat); ok {
		info.UID = int(stat.UID)
		info.GID = int(stat.GID)
	}
	return info, nil
}

func (s *SSH) ProbeAgent(ctx context.Context) (string, error) {
	probe := fmt.Sprintf("PATH=%s:$PATH which cook", agentProbePath)
	result, err := s.Run(ctx, []string{"sh", "-c", probe}, nil)
	if err != nil {
		return "", err
	}
	if !result.Success() {
		return "", nil
	}
	return result.Out(), nil
}

func (s *SSH) Platform(ctx context.Context) (types.Platform, error) {
	// One round trip: OS, arch, and a glibc probe on a single line.
	probe := "echo $(uname -s) $(uname -m) $(ls /lib/$(uname -m)-linux-gnu/libc.so.6 2>/dev/null)"
	result, err := s.Run(ctx, []string{"sh", "-c", probe}, nil)
	if err != nil {
		return types.Platform{}, err
	}
	if !result.Success() {
		return types.Platform{}, fmt.Errorf("%s: platform probe failed: %s", s.host, result.Stderr)
	}
	return parsePlatform(result.Out())
}

func (s *SSH) Close() error {
	s.mu.Lock()
	if s.sftp != nil {
		_ = s.sftp.Close()
		s.sftp = nil
	}
	s.mu.Unlock()
	return s.client.Close()
}

func (s *SSH) sftpClient() (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sftp != nil {
		return s.sftp, nil
	}
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, fmt.Errorf("%s: open sftp subsystem: %w", s.host, err)
	}
	s.sftp = client
	return client, nil
}

type destination struct {
	user     string
	host     string
	port     string
	identity string
}

// resolveDestination splits user@host[:port] and fills the gaps from
// ssh_config, so config aliases work the same as they do for plain ssh.
func resolveDestination(dest string) (destination, error) {
	d := destination{host: dest}
	if i := strings.Index(d.host, "@"); i >= 0 {
		d.user, d.host = d.host[:i], d.host[i+1:]
	}
	if i := strings.LastIndex(d.host, ":"); i >= 0 {
		d.port, d.host = d.host[i+1:], d.host[:i]
	}

	alias := d.host
	if hostname := ssh_config.Get(alias, "HostName"); hostname != "" {
		d.host = hostname
	}
	if d.user == "" {
		d.user = ssh_config.Get(alias, "User")
	}
	if d.user == "" {
		u, err := user.Current()
		if err != nil {
			return d, fmt.Errorf("%s: no user in destination, ssh_config, or environment", dest)
		}
		d.user = u.Username
	}
	if d.port == "" {
		d.port = ssh_config.Get(alias, "Port")
	}
	if d.port == "" {
		d.port = "22"
	}
	d.identity = expandHome(ssh_config.Get(alias, "IdentityFile"))
	return d, nil
}

func identityFileAuth(path string) ssh.AuthMethod {
	if path == "" {
		return nil
	}
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil
	}
	return ssh.PublicKeys(signer)
}

func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}
	agentClient := agent.NewClient(conn)
	return ssh.PublicKeysCallback(agentClient.Signers)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
