package models

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Protocol identifies the wire protocol used to reach a site
type Protocol string

const (
	// ProtocolFTP is plain FTP
	ProtocolFTP Protocol = "ftp"
	// ProtocolFTPS is FTP over TLS (explicit by default)
	ProtocolFTPS Protocol = "ftps"
	// ProtocolSFTP is file transfer over SSH
	ProtocolSFTP Protocol = "sftp"
	// ProtocolS3 is S3-compatible object storage
	ProtocolS3 Protocol = "s3"
	// ProtocolLocal is the local filesystem, mainly for testing and local copies
	ProtocolLocal Protocol = "local"
)

// DefaultPort returns the standard port for the protocol, or 0 when the
// protocol has no port concept
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolFTP, ProtocolFTPS:
		return 21
	case ProtocolSFTP:
		return 22
	default:
		return 0
	}
}

// AuthMethod defines how a session authenticates
type AuthMethod string

const (
	// AuthPassword authenticates with username and password
	AuthPassword AuthMethod = "password"
	// AuthKey authenticates with a private key file
	AuthKey AuthMethod = "key"
	// AuthAgent authenticates through a running ssh-agent
	AuthAgent AuthMethod = "agent"
	// AuthAnonymous logs in as the anonymous user
	AuthAnonymous AuthMethod = "anonymous"
)

// Credential holds the authentication material for one site
type Credential struct {
	Username      string     `yaml:"username"`
	AuthMethod    AuthMethod `yaml:"auth_method"`
	Password      string     `yaml:"password,omitempty"`
	PasswordEnv   string     `yaml:"password_env,omitempty"`
	KeyFile       string     `yaml:"key_file,omitempty"`
	KeyPassphrase string     `yaml:"key_passphrase,omitempty"`
	UseAgent      bool       `yaml:"use_agent,omitempty"`
}

// ResolvePassword returns the password, reading it from the environment
// when the credential names a variable instead of storing the value
func (c *Credential) ResolvePassword() string {
	if c.Password != "" {
		return c.Password
	}
	if c.PasswordEnv != "" {
		return os.Getenv(c.PasswordEnv)
	}
	return ""
}

// Site describes one remote endpoint and how to connect to it
type Site struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Protocol Protocol   `yaml:"protocol"`
	Hostname string     `yaml:"hostname"`
	Port     int        `yaml:"port,omitempty"`
	Credential Credential `yaml:"credential"`

	PassiveMode      bool `yaml:"passive_mode"`
	TimeoutSeconds   int  `yaml:"timeout_seconds"`
	KeepAliveSeconds int  `yaml:"keepalive_seconds"`
	MaxConnections   int  `yaml:"max_connections"`

	// Default working paths for new transfers and syncs
	LocalPath  string `yaml:"local_path,omitempty"`
	RemotePath string `yaml:"remote_path,omitempty"`

	Folder string   `yaml:"folder,omitempty"`
	Tags   []string `yaml:"tags,omitempty"`
	Notes  string   `yaml:"notes,omitempty"`

	// TLSImplicit selects implicit FTPS; the default is explicit AUTH TLS
	TLSImplicit bool `yaml:"tls_implicit,omitempty"`
	VerifyCert  bool `yaml:"verify_cert"`

	// Region and Endpoint apply to s3 sites; Hostname carries the bucket name
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`

	CreatedAt     time.Time  `yaml:"created_at"`
	LastConnected *time.Time `yaml:"last_connected,omitempty"`
}

// NewSite creates a site with generated id and sensible defaults
func NewSite(name string, protocol Protocol, hostname string) *Site {
	return &Site{
		ID:               uuid.New().String(),
		Name:             name,
		Protocol:         protocol,
		Hostname:         hostname,
		Port:             protocol.DefaultPort(),
		PassiveMode:      true,
		TimeoutSeconds:   30,
		KeepAliveSeconds: 60,
		MaxConnections:   5,
		VerifyCert:       true,
		CreatedAt:        time.Now(),
	}
}

// Validate checks the site configuration
func (s *Site) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "Name", Message: "site name is required"}
	}
	if s.Protocol == "" {
		return &ValidationError{Field: "Protocol", Message: "protocol is required"}
	}
	if s.Hostname == "" && s.Protocol != ProtocolLocal {
		return &ValidationError{Field: "Hostname", Message: "hostname is required"}
	}
	if s.Protocol.DefaultPort() > 0 {
		if s.Port < 1 || s.Port > 65535 {
			return &ValidationError{Field: "Port", Message: "port must be between 1 and 65535"}
		}
	}
	return nil
}

// Address returns the host:port dial address
func (s *Site) Address() string {
	port := s.Port
	if port == 0 {
		port = s.Protocol.DefaultPort()
	}
	return fmt.Sprintf("%s:%d", s.Hostname, port)
}

// Timeout returns the connect timeout as a duration
func (s *Site) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
