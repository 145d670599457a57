package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	homedir "github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/shimomut/tfm-sub008/internal/vpath"
	"github.com/shimomut/tfm-sub008/internal/vpath/local"
	"github.com/shimomut/tfm-sub008/internal/vpath/s3store"
	"github.com/shimomut/tfm-sub008/internal/vpath/sftpstore"
)

// resolvePath turns a --left/--right/favorite/state value into a
// vpath.Path, dispatching on URI scheme (spec.md §4.2/§4.3/§4.11): plain
// paths and file:// URIs go to the local backend, s3://bucket/key to the
// S3 backend, sftp://host/path to the SFTP backend.
func (a *app) resolvePath(raw string) (vpath.Path, error) {
	expanded, err := homedir.Expand(raw)
	if err != nil {
		return vpath.Path{}, err
	}
	switch {
	case strings.HasPrefix(expanded, "s3://"):
		return a.resolveS3(strings.TrimPrefix(expanded, "s3://"))
	case strings.HasPrefix(expanded, "sftp://"):
		return a.resolveSFTP(strings.TrimPrefix(expanded, "sftp://"))
	case strings.HasPrefix(expanded, "file://"):
		return local.New(strings.TrimPrefix(expanded, "file://")), nil
	default:
		return local.New(expanded), nil
	}
}

func (a *app) resolveS3(rest string) (vpath.Path, error) {
	bucket, key := rest, ""
	if idx := strings.Index(rest, "/"); idx >= 0 {
		bucket, key = rest[:idx], rest[idx+1:]
	}
	if a.s3Backend == nil {
		sess, err := session.NewSession()
		if err != nil {
			return vpath.Path{}, fmt.Errorf("create AWS session: %w", err)
		}
		a.s3Backend = s3store.NewBackend(sess, a.cache)
	}
	return a.s3Backend.Path(bucket, key), nil
}

func (a *app) resolveSFTP(rest string) (vpath.Path, error) {
	// user@host:port/path, port and user optional.
	user := os.Getenv("USER")
	hostPart := rest
	remotePath := "/"
	if idx := strings.Index(rest, "/"); idx >= 0 {
		hostPart, remotePath = rest[:idx], rest[idx:]
	}
	if idx := strings.Index(hostPart, "@"); idx >= 0 {
		user, hostPart = hostPart[:idx], hostPart[idx+1:]
	}
	addr := hostPart
	if !strings.Contains(addr, ":") {
		addr = addr + ":22"
	}

	if a.sftpBackend == nil {
		auth, err := sshAuthMethod()
		if err != nil {
			return vpath.Path{}, err
		}
		clientCfg := &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{auth},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(), // spec.md §4.11 has no host-key-pinning requirement
			Timeout:         10 * time.Second,
		}
		dialer := sftpstore.NewDialer(addr, clientCfg)
		interval := time.Duration(a.cfg.ControlMasterCheckIntervalSeconds) * time.Second
		health := time.Duration(a.cfg.HealthCheckIntervalSeconds) * time.Second
		a.sftpBackend = sftpstore.NewBackend(hostPart, dialer, interval, health)
	}
	return a.sftpBackend.Path(remotePath), nil
}

// sshAuthMethod builds an ssh.AuthMethod from ~/.ssh/id_rsa (or id_ed25519),
// prompting for a passphrase via golang.org/x/term.ReadPassword if the key
// is encrypted — the one place in this codebase an interactive password
// prompt makes sense, since tcell hasn't taken over the terminal yet at
// this point in startup.
func sshAuthMethod() (ssh.AuthMethod, error) {
	for _, name := range []string{"id_ed25519", "id_rsa"} {
		path, err := homedir.Expand("~/.ssh/" + name)
		if err != nil {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(raw)
		if err == nil {
			return ssh.PublicKeys(signer), nil
		}
		var passphraseErr *ssh.PassphraseMissingError
		if errors.As(err, &passphraseErr) {
			fmt.Fprintf(os.Stderr, "Passphrase for %s: ", path)
			pass, readErr := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if readErr != nil {
				return nil, readErr
			}
			signer, err := ssh.ParsePrivateKeyWithPassphrase(raw, pass)
			if err != nil {
				return nil, err
			}
			return ssh.PublicKeys(signer), nil
		}
	}
	return nil, fmt.Errorf("no usable SSH private key found in ~/.ssh")
}
