package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sdejongh/skiff/internal/platform"
	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
)

// SitesAddFlags holds the flags of the sites add command
type SitesAddFlags struct {
	Name           string
	Protocol       string
	Host           string
	Port           int
	User           string
	Password       string
	PasswordEnv    string
	PromptPassword bool
	KeyFile        string
	UseAgent       bool
	Anonymous      bool
	LocalPath      string
	RemotePath     string
	Folder         string
	Notes          string
	Region         string
	Endpoint       string
}

var sitesAddFlags SitesAddFlags

// NewSitesCommand creates the sites command and its subcommands
func NewSitesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Manage saved sites",
		Long:  `List, inspect, add and remove saved connection sites.`,
	}

	cmd.AddCommand(newSitesListCommand())
	cmd.AddCommand(newSitesShowCommand())
	cmd.AddCommand(newSitesAddCommand())
	cmd.AddCommand(newSitesRemoveCommand())
	cmd.AddCommand(newSitesExportCommand())
	cmd.AddCommand(newSitesImportCommand())

	return cmd
}

func newSitesListCommand() *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			var sites []*models.Site
			if folder != "" {
				sites, err = store.SitesByFolder(folder)
			} else {
				sites, err = store.LoadSites()
			}
			if err != nil {
				return err
			}

			if len(sites) == 0 {
				fmt.Println("No sites saved yet, add one with: skiff sites add")
				return nil
			}

			sort.Slice(sites, func(i, j int) bool {
				if sites[i].Folder != sites[j].Folder {
					return sites[i].Folder < sites[j].Folder
				}
				return strings.ToLower(sites[i].Name) < strings.ToLower(sites[j].Name)
			})

			fmt.Printf("%-24s %-9s %-30s %s\n", "NAME", "PROTOCOL", "HOST", "FOLDER")
			for _, site := range sites {
				host := site.Hostname
				if site.Port != 0 && site.Port != site.Protocol.DefaultPort() {
					host = site.Address()
				}
				fmt.Printf("%-24s %-9s %-30s %s\n", site.Name, site.Protocol, host, site.Folder)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "only list sites in this folder")

	return cmd
}

func newSitesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <site>",
		Short: "Show one site in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			site, err := store.FindSite(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Name:       %s\n", site.Name)
			fmt.Printf("ID:         %s\n", site.ID)
			fmt.Printf("URL:        %s\n", protocol.FormatURL(site, false))
			fmt.Printf("Protocol:   %s\n", site.Protocol)
			if site.Hostname != "" {
				fmt.Printf("Host:       %s\n", site.Address())
			}
			fmt.Printf("User:       %s\n", site.Credential.Username)
			fmt.Printf("Auth:       %s%s\n", site.Credential.AuthMethod, describeSecret(&site.Credential))
			if site.Credential.KeyFile != "" {
				fmt.Printf("Key file:   %s\n", site.Credential.KeyFile)
			}
			if site.LocalPath != "" {
				fmt.Printf("Local path: %s\n", site.LocalPath)
			}
			if site.RemotePath != "" {
				fmt.Printf("Remote path: %s\n", site.RemotePath)
			}
			if site.Folder != "" {
				fmt.Printf("Folder:     %s\n", site.Folder)
			}
			if site.Region != "" {
				fmt.Printf("Region:     %s\n", site.Region)
			}
			if site.Endpoint != "" {
				fmt.Printf("Endpoint:   %s\n", site.Endpoint)
			}
			if site.Notes != "" {
				fmt.Printf("Notes:      %s\n", site.Notes)
			}
			fmt.Printf("Created:    %s\n", site.CreatedAt.Format("2006-01-02 15:04"))
			if site.LastConnected != nil {
				fmt.Printf("Last used:  %s\n", site.LastConnected.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

// describeSecret says where the password comes from without printing it
func describeSecret(cred *models.Credential) string {
	switch {
	case cred.Password != "":
		return " (password stored)"
	case cred.PasswordEnv != "":
		return fmt.Sprintf(" (password from $%s)", cred.PasswordEnv)
	default:
		return ""
	}
}

func newSitesAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [url]",
		Short: "Add a site",
		Long: `Add a site from a URL such as sftp://user@host/path, or from
individual flags. Flags override what the URL carries.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSitesAdd,
	}

	cmd.Flags().StringVar(&sitesAddFlags.Name, "name", "", "site name (default derived from host and user)")
	cmd.Flags().StringVar(&sitesAddFlags.Protocol, "protocol", "", "protocol: ftp, ftps, sftp, s3, local")
	cmd.Flags().StringVar(&sitesAddFlags.Host, "host", "", "hostname, or bucket name for s3")
	cmd.Flags().IntVar(&sitesAddFlags.Port, "port", 0, "port (default is the protocol standard)")
	cmd.Flags().StringVar(&sitesAddFlags.User, "user", "", "username")
	cmd.Flags().StringVar(&sitesAddFlags.Password, "password", "", "password (stored in the site book)")
	cmd.Flags().StringVar(&sitesAddFlags.PasswordEnv, "password-env", "", "read the password from this environment variable")
	cmd.Flags().BoolVar(&sitesAddFlags.PromptPassword, "prompt-password", false, "prompt for the password without echo")
	cmd.Flags().StringVar(&sitesAddFlags.KeyFile, "key-file", "", "ssh private key file")
	cmd.Flags().BoolVar(&sitesAddFlags.UseAgent, "use-agent", false, "authenticate through a running ssh-agent")
	cmd.Flags().BoolVar(&sitesAddFlags.Anonymous, "anonymous", false, "log in as the anonymous user")
	cmd.Flags().StringVar(&sitesAddFlags.LocalPath, "local-path", "", "default local directory for this site")
	cmd.Flags().StringVar(&sitesAddFlags.RemotePath, "remote-path", "", "default remote directory for this site")
	cmd.Flags().StringVar(&sitesAddFlags.Folder, "folder", "", "folder to group the site under")
	cmd.Flags().StringVar(&sitesAddFlags.Notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&sitesAddFlags.Region, "region", "", "region for s3 sites")
	cmd.Flags().StringVar(&sitesAddFlags.Endpoint, "endpoint", "", "custom endpoint for s3-compatible storage")

	return cmd
}

func runSitesAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	var site *models.Site
	if len(args) == 1 {
		site, err = protocol.ParseURL(args[0])
		if err != nil {
			return err
		}
	} else {
		if sitesAddFlags.Host == "" {
			return fmt.Errorf("either a URL argument or --host is required")
		}
		proto := models.Protocol(sitesAddFlags.Protocol)
		if proto == "" {
			proto = models.ProtocolFTP
		}
		site = models.NewSite(sitesAddFlags.Name, proto, sitesAddFlags.Host)
	}

	applySiteFlags(site)

	if sitesAddFlags.PromptPassword {
		prompt := fmt.Sprintf("Password for %s@%s: ", site.Credential.Username, site.Hostname)
		password, err := promptPassword(prompt)
		if err != nil {
			return err
		}
		site.Credential.Password = password
		site.Credential.AuthMethod = models.AuthPassword
	}

	if site.Name == "" {
		site.Name = protocol.SuggestName(site.Hostname, site.Credential.Username, site.Protocol)
	}

	if err := site.Validate(); err != nil {
		return err
	}
	if !cfg.Security.StorePasswords && site.Credential.Password != "" {
		return fmt.Errorf("storing passwords is disabled in the configuration, use --password-env instead")
	}

	if err := store.AddSite(site); err != nil {
		return err
	}

	fmt.Printf("Site %q added (%s)\n", site.Name, protocol.FormatURL(site, false))
	return nil
}

// applySiteFlags layers the add flags over the site, URL-parsed or new
func applySiteFlags(site *models.Site) {
	f := &sitesAddFlags

	if f.Name != "" {
		site.Name = f.Name
	}
	if f.Protocol != "" {
		site.Protocol = models.Protocol(f.Protocol)
	}
	if f.Host != "" {
		site.Hostname = f.Host
	}
	if f.Port != 0 {
		site.Port = f.Port
	} else if site.Port == 0 {
		site.Port = site.Protocol.DefaultPort()
	}
	if f.User != "" {
		site.Credential.Username = f.User
	}
	if f.Password != "" {
		site.Credential.Password = f.Password
		site.Credential.AuthMethod = models.AuthPassword
	}
	if f.PasswordEnv != "" {
		site.Credential.PasswordEnv = f.PasswordEnv
		site.Credential.AuthMethod = models.AuthPassword
	}
	if f.KeyFile != "" {
		site.Credential.KeyFile = platform.ExpandUser(f.KeyFile)
		site.Credential.AuthMethod = models.AuthKey
	}
	if f.UseAgent {
		site.Credential.UseAgent = true
		site.Credential.AuthMethod = models.AuthAgent
	}
	if f.Anonymous {
		site.Credential.AuthMethod = models.AuthAnonymous
		if site.Credential.Username == "" {
			site.Credential.Username = "anonymous"
		}
	}
	if f.LocalPath != "" {
		site.LocalPath = platform.ExpandUser(f.LocalPath)
	}
	if f.RemotePath != "" {
		site.RemotePath = f.RemotePath
	}
	if f.Folder != "" {
		site.Folder = f.Folder
	}
	if f.Notes != "" {
		site.Notes = f.Notes
	}
	if f.Region != "" {
		site.Region = f.Region
	}
	if f.Endpoint != "" {
		site.Endpoint = f.Endpoint
	}
}

// promptPassword reads a password from the terminal without echoing it
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

func newSitesRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <site>",
		Short: "Remove a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.RemoveSite(args[0]); err != nil {
				return err
			}
			fmt.Printf("Site %q removed\n", args[0])
			return nil
		},
	}
}

func newSitesExportCommand() *cobra.Command {
	var includeCredentials bool

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export sites to a YAML file",
		Long: `Export the site book to a YAML file. Passwords and passphrases are
stripped unless --include-credentials is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			path := platform.ExpandUser(args[0])
			if err := store.ExportSites(path, includeCredentials); err != nil {
				return err
			}
			fmt.Printf("Sites exported to %s\n", path)
			if includeCredentials {
				fmt.Println("Warning: the export contains passwords in clear text")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeCredentials, "include-credentials", false, "keep passwords in the export")

	return cmd
}

func newSitesImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import sites from a YAML file",
		Long: `Import sites from a YAML export. Existing sites with the same id are
updated, everything else is added.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			count, err := store.ImportSites(platform.ExpandUser(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d sites\n", count)
			return nil
		},
	}
}
