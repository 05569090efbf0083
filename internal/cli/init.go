package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/hnpager/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig), 0o644)
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	envPath := filepath.Join(configDir, config.DefaultEnvFile+".example")
	wrote, err = writeIfNotExists(envPath, []byte(exampleEnv), 0o600)
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	if created == 0 {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s with %d config files.\n", configDir, created)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# hnpager configuration

search:
  keyword: ChatGPT        # KEYWORD env var overrides
  provider: algolia       # algolia or hnrss
  skew: 5h                # look back this far each run

fetch:
  timeout: 30s
  workers: 4
  cache: memory           # none, memory or redis
  cache_ttl: 30m           # pages are cached for one run only
  # redis:
  #   addr: localhost:6379

summarize:
  model: gpt-3.5-turbo-16k
  api_key_env: OPENAI_API_KEY
  max_tokens: 128
  temperature: 0.8
  attempts: 3

telegram:
  token_env: telegram_token
  chat_id_env: telegram_chat_id
  interval: 1s

schedule:
  cron: "33 * * * *"      # used by 'hnpager run --watch'

storage:
  path: .hnpager/hnpager.db   # "none" disables the run journal
  retain_days: 30

privacy:
  redact:
    enabled: false
    patterns: []

log:
  level: info
  format: text
`

const exampleEnv = `# copy to .env and fill in
telegram_token=
telegram_chat_id=
OPENAI_API_KEY=
# KEYWORD=ChatGPT
`
