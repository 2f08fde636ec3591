package storage

import (
	"errors"
	"io"
	"path"
	"time"

	"github.com/melbahja/goph"
	"github.com/pkg/sftp"
)

// SFTPConfig describes an ssh server. Authenticates with a private key
// if KeyPath is set, with a password otherwise.
type SFTPConfig struct {
	User       string
	Addr       string
	Port       uint
	KeyPath    string
	Passphrase string
	Password   string
}

// SFTP stores files on a server accessed over ssh
type SFTP struct {
	ssh  *goph.Client
	sftp *sftp.Client
}

var _ Backend = &SFTP{}

// NewSFTP connects to the server. Host key must be in known_hosts.
func NewSFTP(config *SFTPConfig) (*SFTP, error) {
	if config == nil || config.User == "" || config.Addr == "" {
		return nil, errors.New("must provide sftp user and address")
	}
	var auth goph.Auth
	var err error
	if config.KeyPath != "" {
		auth, err = goph.Key(config.KeyPath, config.Passphrase)
		if err != nil {
			return nil, err
		}
	} else {
		auth = goph.Password(config.Password)
	}
	callback, err := goph.DefaultKnownHosts()
	if err != nil {
		return nil, err
	}
	port := config.Port
	if port == 0 {
		port = 22
	}
	client, err := goph.NewConn(&goph.Config{
		User:     config.User,
		Addr:     config.Addr,
		Port:     port,
		Auth:     auth,
		Timeout:  20 * time.Second,
		Callback: callback,
	})
	if err != nil {
		return nil, err
	}
	sc, err := client.NewSftp()
	if err != nil {
		client.Close()
		return nil, err
	}
	return &SFTP{
		ssh:  client,
		sftp: sc,
	}, nil
}

// Open opens a remote file for reading
func (s *SFTP) Open(p string) (io.ReadCloser, error) {
	f, err := s.sftp.Open(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Stat returns size of remote file
func (s *SFTP) Stat(p string) (int64, error) {
	fi, err := s.sftp.Stat(p)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Create creates a remote file, creating directories as needed
func (s *SFTP) Create(p string) (io.WriteCloser, error) {
	err := s.sftp.MkdirAll(path.Dir(p))
	if err != nil {
		return nil, err
	}
	f, err := s.sftp.Create(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Close closes sftp session and ssh connection
func (s *SFTP) Close() error {
	err := s.sftp.Close()
	err2 := s.ssh.Close()
	if err != nil {
		return err
	}
	return err2
}
