package setup

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/lendscope/config"
	"github.com/vadiminshakov/lendscope/internal/domain"
	"github.com/vadiminshakov/lendscope/internal/storage/kv"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers holds the wizard inputs.
type Answers struct {
	Wallet  string
	ChainID string
	Backend string
	DataDir string
	RPCURL  string
}

// Build turns answers into the YAML form of the config.
func Build(a Answers) (config.ConfigTmp, error) {
	if err := validateWallet(a.Wallet); err != nil {
		return config.ConfigTmp{}, err
	}
	if _, err := config.ParseChainID(a.ChainID); err != nil {
		return config.ConfigTmp{}, err
	}

	tmp := config.ConfigTmp{
		Wallet:  common.HexToAddress(strings.TrimSpace(a.Wallet)).Hex(),
		ChainID: strings.TrimSpace(a.ChainID),
		Storage: config.StorageTmp{
			Backend: a.Backend,
			Dir:     strings.TrimSpace(a.DataDir),
		},
	}
	if rpc := strings.TrimSpace(a.RPCURL); rpc != "" {
		if err := validateURL(rpc); err != nil {
			return config.ConfigTmp{}, err
		}
		tmp.RPC = map[string]string{tmp.ChainID: rpc}
	}

	// the saved file must parse
	if _, err := tmp.Parse(); err != nil {
		return config.ConfigTmp{}, err
	}
	return tmp, nil
}

// Save writes the config as YAML to path.
func Save(path string, tmp config.ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// RunTUI launches the terminal configuration wizard and writes the result
// to path.
func RunTUI(path string) error {
	if path == "" {
		path = config.DefaultPath
	}

	a := Answers{
		ChainID: strconv.FormatUint(uint64(domain.DefaultChainID), 10),
		Backend: string(kv.BackendWAL),
		DataDir: ".lendscope",
	}
	var confirm bool

	// step 1: welcome
	clearScreen()
	fmt.Println(headerStyle.Render("LENDSCOPE SETUP"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Track supply positions and profit from the terminal.\n"))

	fmt.Println(stepStyle.Render("STEP 1: WALLET"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Wallet address").
				Description("The address whose positions are tracked (0x...)").
				Value(&a.Wallet).
				Validate(validateWallet),
		),
	).Run()
	if err != nil {
		return err
	}

	// chain
	clearScreen()
	fmt.Println(headerStyle.Render("LENDSCOPE SETUP"))
	fmt.Println(stepStyle.Render("STEP 2: CHAIN"))
	chainOptions := make([]huh.Option[string], 0, len(domain.SupportedChains()))
	for _, id := range domain.SupportedChains() {
		cfg := domain.GetChainConfig(id)
		chainOptions = append(chainOptions, huh.NewOption(cfg.Name, strconv.FormatUint(uint64(id), 10)))
	}
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default chain").
				Options(chainOptions...).
				Value(&a.ChainID),
			huh.NewInput().
				Title("RPC URL (optional)").
				Description("Used to wait for receipts when recording transactions").
				Value(&a.RPCURL).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					return validateURL(s)
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// storage
	clearScreen()
	fmt.Println(headerStyle.Render("LENDSCOPE SETUP"))
	fmt.Println(stepStyle.Render("STEP 3: LOCAL LEDGER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Storage backend").
				Options(
					huh.NewOption("Write-ahead log", string(kv.BackendWAL)),
					huh.NewOption("LevelDB", string(kv.BackendLevelDB)),
				).
				Value(&a.Backend),
			huh.NewInput().
				Title("Data directory").
				Value(&a.DataDir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("data directory cannot be empty")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	clearScreen()
	fmt.Println(headerStyle.Render("LENDSCOPE SETUP"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	tmp, err := Build(a)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("Wallet: %s\nChain: %s\nStorage: %s (%s)\n",
		tmp.Wallet, a.ChainID, tmp.Storage.Backend, tmp.Storage.Dir)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := Save(path, tmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}

func validateWallet(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("wallet cannot be empty")
	}
	if !common.IsHexAddress(strings.TrimSpace(s)) {
		return fmt.Errorf("invalid address: must be 0x followed by 40 hex characters")
	}
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("must be an http(s) or ws(s) url")
	}
	return nil
}
