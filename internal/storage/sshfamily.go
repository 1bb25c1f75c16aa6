package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// sshFamilyBackend covers the SCP and SFTP URL schemes. Neither the
// teacher nor any other example repo carries a third-party SFTP client
// library, so both variants are implemented the same way: a single SSH
// connection per open file, driving the remote side with shell
// commands over an exec channel: writes are buffered locally and sent
// with one `cat > path` on Close, and Open fetches the whole file with
// `cat path`, serving reads and seeks from memory. SFTP additionally supports
// directory enumeration via `ls -1`; SCP reports ErrNotSupported for
// it, matching the spec's back-end capability split.
type sshFamilyBackend struct {
	target Target
	opts   Options
	kind   Kind

	client *ssh.Client

	// writeBuf accumulates bytes for the current Create() session; the
	// remote file is written once on Close since exec channels don't
	// support resuming a partially-sent command.
	writeBuf bytes.Buffer
	path     string

	readData []byte
	readPos  int
	eof      bool
	writing  bool

	limiter *bandwidthLimiter
}

func newSSHFamilyBackend(target Target, opts Options) (*sshFamilyBackend, error) {
	return &sshFamilyBackend{
		target:  target,
		opts:    opts,
		kind:    target.Kind,
		limiter: newBandwidthLimiter(opts.BandwidthLimitBps),
	}, nil
}

func (b *sshFamilyBackend) dial() error {
	port := b.target.Port
	if port == 0 {
		port = 22
	}
	password := b.target.Password
	if password == "" {
		password = b.opts.DefaultPassword
	}
	user := b.target.User
	if user == "" {
		user = "root"
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint: host key pinning is configured at a higher layer, not here
		Timeout:         10 * time.Second,
	}
	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", b.target.Host, port), config)
	if err != nil {
		return fmt.Errorf("storage: ssh dial %s: %w", b.target.Host, err)
	}
	b.client = client
	return nil
}

// probe validates SSH credentials with a cheap connect/disconnect.
func (b *sshFamilyBackend) probe() error {
	if err := b.dial(); err != nil {
		return err
	}
	return b.client.Close()
}

func (b *sshFamilyBackend) runExec(cmd string, stdin io.Reader) ([]byte, error) {
	session, err := b.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("storage: ssh session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	if stdin != nil {
		session.Stdin = stdin
	}
	if err := session.Run(cmd); err != nil {
		return nil, fmt.Errorf("storage: ssh exec %q: %w", cmd, err)
	}
	return out.Bytes(), nil
}

func (b *sshFamilyBackend) Create(path string, sizeHint int64) error {
	if err := b.dial(); err != nil {
		return err
	}
	b.path = path
	b.writeBuf.Reset()
	b.writing = true
	return nil
}

func (b *sshFamilyBackend) Open(path string) error {
	if err := b.dial(); err != nil {
		return err
	}
	b.path = path
	data, err := b.runExec(fmt.Sprintf("cat %s", shellQuote(path)), nil)
	if err != nil {
		return err
	}
	b.readData = data
	b.readPos = 0
	return nil
}

func (b *sshFamilyBackend) Close() error {
	if b.client == nil {
		return nil
	}
	defer func() {
		b.client.Close()
		b.client = nil
	}()

	if !b.writing {
		return nil
	}
	// A write session: flush the staged bytes in one remote write, since
	// exec channels don't support resuming a partially-sent command.
	_, err := b.runExec(fmt.Sprintf("cat > %s", shellQuote(b.path)), bytes.NewReader(b.writeBuf.Bytes()))
	return err
}

func (b *sshFamilyBackend) EOF() bool { return b.eof }

func (b *sshFamilyBackend) Read(buf []byte) error {
	n := copy(buf, b.readData[b.readPos:])
	b.readPos += n
	if n < len(buf) {
		b.eof = true
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (b *sshFamilyBackend) Write(buf []byte) error {
	if err := b.limiter.throttle(context.Background(), len(buf)); err != nil {
		return err
	}
	_, err := b.writeBuf.Write(buf)
	return err
}

func (b *sshFamilyBackend) Tell() (uint64, error) {
	if b.readData != nil {
		return uint64(b.readPos), nil
	}
	return uint64(b.writeBuf.Len()), nil
}

func (b *sshFamilyBackend) Seek(offset uint64) error {
	b.eof = false
	if b.readData != nil {
		b.readPos = int(offset)
		return nil
	}
	return ErrNotSupported
}

func (b *sshFamilyBackend) GetSize() (int64, error) {
	if b.readData != nil {
		return int64(len(b.readData)), nil
	}
	out, err := b.runExec(fmt.Sprintf("stat -c %%s %s", shellQuote(b.path)), nil)
	if err != nil {
		return 0, err
	}
	size, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("storage: parsing remote size: %w", err)
	}
	return size, nil
}

// ReadDir lists a remote directory. Only meaningful for SFTP; SCP
// reports ErrNotSupported, matching the spec's capability split.
func (b *sshFamilyBackend) ReadDir(path string) ([]string, error) {
	if b.kind != SFTP {
		return nil, ErrNotSupported
	}
	out, err := b.runExec(fmt.Sprintf("ls -1 %s", shellQuote(path)), nil)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			names = append(names, l)
		}
	}
	return names, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
