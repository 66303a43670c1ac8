package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "hugh",
	Short: "Home Assistant housekeeping: mirror the config to GitHub and roll out device updates",
	Long: `hugh bundles the housekeeping jobs of a Home Assistant install.

backup   snapshots entities and integrations and mirrors the configuration to GitHub
extract  lists zigbee2mqtt devices with a pending OTA update
update   installs pending updates one device at a time
upload   mirrors a single file to GitHub
serve    runs backups periodically and serves their reports`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Absolute path of the configuration file to use.")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// glog only checks that the go flags were parsed; cobra fills the values.
	flag.CommandLine.Parse(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		glog.Exitf("%s", err)
	}
	glog.Flush()
}
