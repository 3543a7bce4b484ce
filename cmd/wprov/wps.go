package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/wprov/internal/adapters/sniffer/ie"
	"github.com/lcalzada-xor/wprov/internal/adapters/sniffer/parser"
	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

func newWPSCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wps",
		Short: "Inspect WPS information elements",
	}

	var bssid string
	var onlyWPS bool
	scan := &cobra.Command{
		Use:   "scan <pcap>",
		Short: "List access points and their WPS Device Password ID from a capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			want := ""
			if bssid != "" {
				mac, ok := domain.NormalizeMAC(bssid)
				if !ok {
					return fmt.Errorf("invalid bssid %q", bssid)
				}
				want = mac
			}

			aps, err := parser.ScanFile(args[0])
			if err != nil {
				return fmt.Errorf("scan %s: %w", args[0], err)
			}

			out := make([]parser.AccessPoint, 0, len(aps))
			for _, ap := range aps {
				if want != "" && ap.BSSID != want {
					continue
				}
				if onlyWPS && !ap.WPS {
					continue
				}
				out = append(out, ap)
			}
			c.log.V(1).Info("Capture scanned", "file", args[0], "access_points", len(aps), "shown", len(out))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	scan.Flags().StringVar(&bssid, "bssid", "", "only show this BSSID")
	scan.Flags().BoolVar(&onlyWPS, "wps-only", false, "only show access points advertising WPS")

	check := &cobra.Command{
		Use:   "check <hex>",
		Short: "Check a vendor element body (OUI, type, attributes) for WPS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.NewReplacer(" ", "", ":", "").Replace(args[0])
			element, err := hex.DecodeString(raw)
			if err != nil {
				return fmt.Errorf("decode element: %w", err)
			}

			found, id := ie.CheckVendorElement(element)
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "wps=false")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wps=true device_password_id=0x%04X method=%s\n", id, ie.PasswordIDName(id))
			return nil
		},
	}

	cmd.AddCommand(scan, check)
	return cmd
}
