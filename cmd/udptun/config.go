package main

import (
	"os"

	"github.com/lysShub/udptun"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// options is the merged flag/file configuration. File values fill the
// fields first, explicitly-set flags overwrite them.
type options struct {
	Iface       string `yaml:"iface"`
	Server      bool   `yaml:"server"`
	Connect     string `yaml:"connect"`
	Port        uint16 `yaml:"port"`
	Tap         bool   `yaml:"tap"`
	NoLearnPeer bool   `yaml:"no-learn-peer"`
	FixedSize   bool   `yaml:"fixed-size"`
	Debug       bool   `yaml:"debug"`
	Pcap        string `yaml:"pcap"`
	TOS         int    `yaml:"tos"`
	TTL         int    `yaml:"ttl"`
	MaxRecvBuff int    `yaml:"max-recv-buff"`
}

func loadOptions(cmd *cobra.Command, path string) (*options, error) {
	var opts = &options{Port: udptun.DefaultPort}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if err := yaml.Unmarshal(b, opts); err != nil {
			return nil, errors.Wrap(err, path)
		}
	}

	f := cmd.Flags()
	if f.Changed("iface") {
		opts.Iface, _ = f.GetString("iface")
	}
	if f.Changed("server") {
		opts.Server, _ = f.GetBool("server")
	}
	if f.Changed("connect") {
		opts.Connect, _ = f.GetString("connect")
	}
	if f.Changed("port") {
		opts.Port, _ = f.GetUint16("port")
	}
	if f.Changed("tap") {
		opts.Tap, _ = f.GetBool("tap")
	}
	if f.Changed("no-learn-peer") {
		opts.NoLearnPeer, _ = f.GetBool("no-learn-peer")
	}
	if f.Changed("fixed-size") {
		opts.FixedSize, _ = f.GetBool("fixed-size")
	}
	if f.Changed("debug") {
		opts.Debug, _ = f.GetBool("debug")
	}
	if f.Changed("pcap") {
		opts.Pcap, _ = f.GetString("pcap")
	}
	if f.Changed("tos") {
		opts.TOS, _ = f.GetInt("tos")
	}
	if f.Changed("ttl") {
		opts.TTL, _ = f.GetInt("ttl")
	}

	if opts.Server && opts.Connect != "" {
		return nil, errors.New("--server and --connect are mutually exclusive")
	}
	if !opts.Server && opts.Connect == "" {
		return nil, errors.New("require --server or --connect <addr>")
	}
	return opts, nil
}
