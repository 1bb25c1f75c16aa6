// Command bar is a thin wiring host around the archive engine: it maps
// the flags an external CLI front-end would already be parsing
// (patterns, archive name, part size, algorithms, profile) onto
// internal/packer, internal/archive, internal/volume, and
// internal/statusserver. It is not the CLI surface the project
// specifies — that remains an external collaborator — just the
// minimum main() needed to exercise the pieces together.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"bar/internal/archive"
	"bar/internal/audit"
	"bar/internal/compressor"
	"bar/internal/config"
	"bar/internal/keystore"
	"bar/internal/metrics"
	"bar/internal/packer"
	"bar/internal/secmem"
	"bar/internal/statusserver"
	"bar/internal/storage"
	"bar/internal/symcipher"
	"bar/internal/volume"
)

func main() {
	var (
		mode        = flag.String("mode", "pack", "pack or restore")
		stem        = flag.String("archive", "", "archive stem (path or storage URL)")
		profilePath = flag.String("profile", "", "optional YAML profile overriding defaults")
		compressAlg = flag.String("compress", "zip6", "none, zip0..zip9")
		cryptAlg    = flag.String("cipher", "AES256", "none, 3DES, CAST5, Blowfish, AES128, AES192, AES256, Twofish128, Twofish256")
		partSize    = flag.Int64("part-size", 0, "max bytes per storage part, 0 for unsplit")
		statusAddr  = flag.String("status-addr", ":9090", "status/metrics HTTP listen address")
		publicKey   = flag.String("public-key", "", "path or inline base64 blob of an RSA public key; packs with asymmetric key wrapping instead of BAR_PASSWORD")
		privateKey  = flag.String("private-key", "", "path or inline base64 blob of an RSA private key; restores an archive packed with -public-key")
	)
	flag.Parse()

	if *stem == "" {
		log.Fatal("bar: -archive is required")
	}

	profile := &config.Profile{
		StorageURL:        *stem,
		CompressAlgorithm: *compressAlg,
		CryptAlgorithm:    *cryptAlg,
		PartSize:          *partSize,
		Include:           flag.Args(),
	}
	if *profilePath != "" {
		loaded, err := config.LoadProfile(*profilePath)
		if err != nil {
			log.Fatalf("bar: loading profile: %v", err)
		}
		profile = loaded
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	m := metrics.NewMetrics()
	auditLog := audit.NewLogger(1000, &audit.StdoutSink{})
	defer auditLog.Close()

	vc := volume.New(volume.WithPrompt(func(ctx context.Context, n int) error {
		fmt.Printf("insert volume %d and press Enter\n", n)
		_, err := fmt.Scanln()
		return err
	}))

	srv := statusserver.New(statusserver.Config{Addr: *statusAddr}, m, vc, logger)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.WithError(err).Warn("status server stopped")
		}
	}()

	_, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch *mode {
	case "pack":
		runErr = runPack(profile, m, auditLog, *publicKey)
	case "restore":
		runErr = runRestore(profile, m, auditLog, *privateKey)
	default:
		log.Fatalf("bar: unknown -mode %q", *mode)
	}

	if err := srv.Shutdown(5 * time.Second); err != nil {
		logger.WithError(err).Warn("status server shutdown")
	}

	if runErr != nil {
		logger.WithError(runErr).Fatal("bar: run failed")
	}
}

func runPack(profile *config.Profile, m *metrics.Metrics, auditLog audit.Logger, publicKeyArg string) error {
	compAlg, err := parseCompressAlgorithm(profile.CompressAlgorithm)
	if err != nil {
		return err
	}
	cAlg, err := symcipher.ParseAlgorithm(profile.CryptAlgorithm)
	if err != nil {
		return err
	}

	var password *secmem.Password
	var keyEnvelope string
	if publicKeyArg != "" {
		password, keyEnvelope, err = wrapSessionPassword(publicKeyArg)
		if err != nil {
			return err
		}
	} else {
		password = secmem.FromString(requirePassword())
	}

	w, err := archive.NewWriter(profile.StorageURL, profile.PartSize, compAlg, cAlg, password, storage.Options{})
	if err != nil {
		return fmt.Errorf("bar: opening archive for writing: %w", err)
	}
	defer w.Close()

	if keyEnvelope != "" {
		if err := w.WriteKeyEnvelope(keyEnvelope); err != nil {
			return fmt.Errorf("bar: writing key envelope: %w", err)
		}
	}

	q := packer.NewQueue(256)
	includes := toIncludeRules(profile.Include)
	excludes := toIncludeRules(profile.Exclude)
	c, err := packer.NewCollector(includes, excludes, q, false)
	if err != nil {
		return err
	}

	start := time.Now()
	collectErr := make(chan error, 1)
	go func() { collectErr <- c.Run() }()

	p := packer.NewPacker(w, q)
	if err := p.Run(func(name string, err error) {
		auditLog.LogPack(profile.StorageURL, name, profile.CompressAlgorithm, profile.CryptAlgorithm, false, err, 0)
	}); err != nil {
		return err
	}
	if err := <-collectErr; err != nil {
		return err
	}

	duration := time.Since(start)
	m.RecordArchiveOperation(context.Background(), "pack", duration, p.Bytes)
	auditLog.LogPack(profile.StorageURL, fmt.Sprintf("%d files", p.Packed), profile.CompressAlgorithm, profile.CryptAlgorithm, true, nil, duration)
	return nil
}

func runRestore(profile *config.Profile, m *metrics.Metrics, auditLog audit.Logger, privateKeyArg string) error {
	// The reader needs a password before it can decode the first FILE
	// chunk, but an asymmetrically-wrapped archive's session password
	// only becomes known after reading its KEY chunk. Open once with a
	// placeholder to read the KEY chunk, then reopen with the real key.
	var password *secmem.Password
	if privateKeyArg != "" {
		probe, err := archive.NewReader(profile.StorageURL, secmem.New(), storage.Options{})
		if err != nil {
			return fmt.Errorf("bar: opening archive for reading: %w", err)
		}
		envelopeB64, err := probe.ReadKeyEnvelope()
		_ = probe.Close()
		if err != nil {
			return fmt.Errorf("bar: reading key envelope: %w", err)
		}
		password, err = unwrapSessionPassword(privateKeyArg, envelopeB64)
		if err != nil {
			return err
		}
	} else {
		password = secmem.FromString(requirePassword())
	}

	r, err := archive.NewReader(profile.StorageURL, password, storage.Options{})
	if err != nil {
		return fmt.Errorf("bar: opening archive for reading: %w", err)
	}
	defer r.Close()
	if privateKeyArg != "" {
		if _, err := r.ReadKeyEnvelope(); err != nil {
			return fmt.Errorf("bar: re-reading key envelope: %w", err)
		}
	}

	start := time.Now()
	var totalBytes int64
	for {
		meta, partOffset, partSize, err := r.ReadFile()
		if err == archive.ErrEndOfArchive {
			break
		}
		if err != nil {
			return err
		}

		// A file split across parts reappears here as consecutive FILE
		// chunks sharing a name, each continuing at the next partOffset.
		if err := restoreOne(r, meta, partOffset, partSize); err != nil {
			auditLog.LogRestore(profile.StorageURL, meta.Name, profile.CompressAlgorithm, profile.CryptAlgorithm, false, err, 0)
			return err
		}
		totalBytes += int64(partSize)
		if err := r.CloseFile(); err != nil {
			return err
		}
	}

	duration := time.Since(start)
	m.RecordArchiveOperation(context.Background(), "restore", duration, totalBytes)
	auditLog.LogRestore(profile.StorageURL, "archive", profile.CompressAlgorithm, profile.CryptAlgorithm, true, nil, duration)
	return nil
}

func restoreOne(r *archive.Reader, meta archive.Metadata, partOffset, partSize uint64) error {
	flags := os.O_CREATE | os.O_WRONLY
	if partOffset == 0 {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(meta.Name, flags, os.FileMode(meta.Permission))
	if err != nil {
		return fmt.Errorf("bar: creating %s: %w", meta.Name, err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(partOffset), os.SEEK_SET); err != nil {
		return fmt.Errorf("bar: seeking in %s: %w", meta.Name, err)
	}

	buf := make([]byte, partSize)
	n, err := r.ReadFileData(buf)
	if err != nil {
		return err
	}
	_, err = f.Write(buf[:n])
	return err
}

// toIncludeRules treats every profile pattern as a glob matched exactly
// against the full path; the CLI front-end that would let a caller pick
// regex dialects or begin/end anchoring per pattern is external.
func toIncludeRules(patterns []string) []packer.IncludeRule {
	rules := make([]packer.IncludeRule, 0, len(patterns))
	for _, p := range patterns {
		rules = append(rules, packer.IncludeRule{Pattern: p, Type: packer.Glob, Mode: packer.Exact})
	}
	return rules
}

func parseCompressAlgorithm(name string) (compressor.Algorithm, error) {
	switch name {
	case "", "none":
		return compressor.None, nil
	case "zip0":
		return compressor.Zip0, nil
	case "zip1":
		return compressor.Zip1, nil
	case "zip2":
		return compressor.Zip2, nil
	case "zip3":
		return compressor.Zip3, nil
	case "zip4":
		return compressor.Zip4, nil
	case "zip5":
		return compressor.Zip5, nil
	case "zip6":
		return compressor.Zip6, nil
	case "zip7":
		return compressor.Zip7, nil
	case "zip8":
		return compressor.Zip8, nil
	case "zip9":
		return compressor.Zip9, nil
	default:
		return compressor.None, fmt.Errorf("bar: unknown compress algorithm %q", name)
	}
}

// wrapSessionPassword loads the public key at (or inline in)
// publicKeyArg, generates a fresh session password, and wraps it into
// a base64 KEY-chunk envelope per the asymmetric wrap invariant: the
// returned password keys the archive's symmetric cipher, the envelope
// lets the matching private key recover it again.
func wrapSessionPassword(publicKeyArg string) (*secmem.Password, string, error) {
	material, err := readKeyMaterial(publicKeyArg)
	if err != nil {
		return nil, "", err
	}
	kp, err := keystore.ImportPublic(material)
	if err != nil {
		return nil, "", fmt.Errorf("bar: loading public key: %w", err)
	}
	password, envelope, err := kp.WrapRandomPassword()
	if err != nil {
		return nil, "", fmt.Errorf("bar: wrapping session password: %w", err)
	}
	return password, base64.StdEncoding.EncodeToString(envelope), nil
}

// unwrapSessionPassword is wrapSessionPassword's inverse, recovering
// the session password an archive's KEY chunk carries under
// privateKeyArg.
func unwrapSessionPassword(privateKeyArg, envelopeB64 string) (*secmem.Password, error) {
	material, err := readKeyMaterial(privateKeyArg)
	if err != nil {
		return nil, err
	}
	kp, err := keystore.ImportPrivate(material)
	if err != nil {
		return nil, fmt.Errorf("bar: loading private key: %w", err)
	}
	envelope, err := base64.StdEncoding.DecodeString(envelopeB64)
	if err != nil {
		return nil, fmt.Errorf("bar: decoding key envelope: %w", err)
	}
	password, err := kp.UnwrapPassword(envelope)
	if err != nil {
		return nil, fmt.Errorf("bar: unwrapping session password: %w", err)
	}
	return password, nil
}

// readKeyMaterial accepts either a path that exists on disk or the
// base64 blob inline, matching readKeyFile's dual behavior.
func readKeyMaterial(pathOrLiteral string) (string, error) {
	if data, err := os.ReadFile(pathOrLiteral); err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	return pathOrLiteral, nil
}

func requirePassword() string {
	if pw := os.Getenv("BAR_PASSWORD"); pw != "" {
		return pw
	}
	log.Fatal("bar: BAR_PASSWORD must be set (the CLI's password-prompt/key-file handling is external)")
	return ""
}
