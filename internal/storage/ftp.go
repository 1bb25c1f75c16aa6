package storage

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"time"
)

// ftpBackend speaks just enough of RFC 959 to create/open a single
// remote file over a passive-mode data connection: USER/PASS, TYPE I,
// PASV, STOR/RETR and QUIT. Tell and Seek are not supported. There is no
// directory enumeration support (the protocol exposes LIST, but BAR
// never needs to browse an FTP target, only address one path within
// it).
type ftpBackend struct {
	target Target
	opts   Options

	conn *textproto.Conn
	data net.Conn

	limiter *bandwidthLimiter
	eof     bool
}

func newFTPBackend(target Target, opts Options) *ftpBackend {
	return &ftpBackend{
		target:  target,
		opts:    opts,
		limiter: newBandwidthLimiter(opts.BandwidthLimitBps),
	}
}

func (b *ftpBackend) dial() error {
	port := b.target.Port
	if port == 0 {
		port = 21
	}
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", b.target.Host, port), 10*time.Second)
	if err != nil {
		return fmt.Errorf("storage: ftp dial %s: %w", b.target.Host, err)
	}
	b.conn = textproto.NewConn(conn)

	if _, _, err := b.conn.ReadResponse(220); err != nil {
		return fmt.Errorf("storage: ftp greeting: %w", err)
	}

	user := b.target.User
	if user == "" {
		user = "anonymous"
	}
	if err := b.conn.PrintfLine("USER %s", user); err != nil {
		return err
	}
	if _, _, err := b.conn.ReadResponse(331); err != nil {
		return fmt.Errorf("storage: ftp USER: %w", err)
	}

	password := b.target.Password
	if password == "" {
		password = b.opts.DefaultPassword
	}
	if err := b.conn.PrintfLine("PASS %s", password); err != nil {
		return err
	}
	if _, _, err := b.conn.ReadResponse(230); err != nil {
		return fmt.Errorf("storage: ftp PASS: %w", err)
	}

	if err := b.conn.PrintfLine("TYPE I"); err != nil {
		return err
	}
	if _, _, err := b.conn.ReadResponse(200); err != nil {
		return fmt.Errorf("storage: ftp TYPE I: %w", err)
	}
	return nil
}

// probe validates credentials cheaply: connect, login, quit, without
// transferring any data.
func (b *ftpBackend) probe() error {
	if err := b.dial(); err != nil {
		return err
	}
	return b.quitOnly()
}

func (b *ftpBackend) quitOnly() error {
	b.conn.PrintfLine("QUIT")
	return b.conn.Close()
}

func (b *ftpBackend) openPassive() (net.Conn, error) {
	if err := b.conn.PrintfLine("PASV"); err != nil {
		return nil, err
	}
	_, msg, err := b.conn.ReadResponse(227)
	if err != nil {
		return nil, fmt.Errorf("storage: ftp PASV: %w", err)
	}
	host, port, err := parsePASVResponse(msg)
	if err != nil {
		return nil, err
	}
	return net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 10*time.Second)
}

func (b *ftpBackend) Create(path string, sizeHint int64) error {
	if err := b.dial(); err != nil {
		return err
	}
	data, err := b.openPassive()
	if err != nil {
		return err
	}
	if err := b.conn.PrintfLine("STOR %s", path); err != nil {
		return err
	}
	if _, _, err := b.conn.ReadResponse(150); err != nil {
		return fmt.Errorf("storage: ftp STOR: %w", err)
	}
	b.data = data
	return nil
}

func (b *ftpBackend) Open(path string) error {
	if err := b.dial(); err != nil {
		return err
	}
	data, err := b.openPassive()
	if err != nil {
		return err
	}
	if err := b.conn.PrintfLine("RETR %s", path); err != nil {
		return err
	}
	if _, _, err := b.conn.ReadResponse(150); err != nil {
		return fmt.Errorf("storage: ftp RETR: %w", err)
	}
	b.data = data // data connections are read sequentially, no seek support
	return nil
}

func (b *ftpBackend) Close() error {
	if b.data != nil {
		b.data.Close()
		b.data = nil
	}
	if b.conn == nil {
		return nil
	}
	if _, _, err := b.conn.ReadResponse(226); err != nil {
		b.conn.Close()
		return fmt.Errorf("storage: ftp transfer complete: %w", err)
	}
	return b.quitOnly()
}

func (b *ftpBackend) EOF() bool { return b.eof }

func (b *ftpBackend) Read(buf []byte) error {
	n, err := io.ReadFull(b.data, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		b.eof = true
	}
	if n == len(buf) {
		return nil
	}
	return err
}

func (b *ftpBackend) Write(buf []byte) error {
	if err := b.limiter.throttle(context.Background(), len(buf)); err != nil {
		return err
	}
	_, err := b.data.Write(buf)
	return err
}

func (b *ftpBackend) Tell() (uint64, error) {
	return 0, ErrNotSupported
}

func (b *ftpBackend) Seek(offset uint64) error {
	return ErrNotSupported
}

func (b *ftpBackend) GetSize() (int64, error) {
	return 0, ErrNotSupported
}

func parsePASVResponse(msg string) (string, int, error) {
	start := -1
	for i, c := range msg {
		if c == '(' {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", 0, fmt.Errorf("storage: malformed PASV response %q", msg)
	}
	var a, bb, c, d, p1, p2 int
	_, err := fmt.Sscanf(msg[start:], "%d,%d,%d,%d,%d,%d", &a, &bb, &c, &d, &p1, &p2)
	if err != nil {
		return "", 0, fmt.Errorf("storage: parsing PASV response %q: %w", msg, err)
	}
	return fmt.Sprintf("%d.%d.%d.%d", a, bb, c, d), p1*256 + p2, nil
}
