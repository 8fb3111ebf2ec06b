package inspect

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var (
	CMD = &cobra.Command{
		Use:   "inspect",
		Short: "Offline helpers for bridge messages",
	}

	hashCmd = &cobra.Command{
		Use:   "hash",
		Short: "Compute message hashes as the messaging core keys them",
	}

	hashL1ToL2Cmd = &cobra.Command{
		Use:   "l1-to-l2",
		Short: "Hash an L1 -> L2 message",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			from, _ := f.GetString("from")
			to, _ := f.GetString("to")
			selector, _ := f.GetString("selector")
			nonce, _ := f.GetUint64("nonce")
			payload, _ := f.GetStringSlice("payload")

			h, err := HashL1ToL2(L1ToL2Args{From: from, To: to, Selector: selector, Nonce: nonce, Payload: payload})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h.Hex())
			return nil
		},
	}

	hashL2ToL1Cmd = &cobra.Command{
		Use:   "l2-to-l1",
		Short: "Hash an L2 -> L1 message",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			from, _ := f.GetString("from")
			to, _ := f.GetString("to")
			payload, _ := f.GetStringSlice("payload")

			h, err := HashL2ToL1(L2ToL1Args{From: from, To: to, Payload: payload})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h.Hex())
			return nil
		},
	}

	selectorsCmd = &cobra.Command{
		Use:   "selectors",
		Short: "List the L2 bridge entry point selectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range Selectors() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-34s %s\n", s.Name, s.Value.Hex())
			}
			return nil
		},
	}

	splitCmd = &cobra.Command{
		Use:   "split <amount>",
		Short: "Split an amount into its low and high limbs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			low, high, err := Split(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "low  %s\nhigh %s\n",
				hexutil.EncodeBig(low.ToBig()), hexutil.EncodeBig(high.ToBig()))
			return nil
		},
	}

	withdrawalCmd = &cobra.Command{
		Use:   "withdrawal <felt>...",
		Short: "Decode an L2 -> L1 withdrawal payload",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := Withdrawal(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "recipient %s\n", w.Recipient.Hex())
			if w.Token != nil {
				fmt.Fprintf(out, "token     %s\n", w.Token.Hex())
			} else {
				fmt.Fprintln(out, "token     legacy")
			}
			fmt.Fprintf(out, "amount    %s\n", w.Amount.Dec())
			return nil
		},
	}
)

func init() {
	hashL1ToL2Cmd.Flags().String("from", "", "L1 sender address")
	hashL1ToL2Cmd.Flags().String("to", "", "L2 recipient contract")
	hashL1ToL2Cmd.Flags().String("selector", "handle_deposit", "Entry point name or selector felt")
	hashL1ToL2Cmd.Flags().Uint64("nonce", 0, "Message nonce")
	hashL1ToL2Cmd.Flags().StringSlice("payload", nil, "Payload felts")

	hashL2ToL1Cmd.Flags().String("from", "", "L2 sender contract")
	hashL2ToL1Cmd.Flags().String("to", "", "L1 recipient address")
	hashL2ToL1Cmd.Flags().StringSlice("payload", nil, "Payload felts")

	hashCmd.AddCommand(hashL1ToL2Cmd)
	hashCmd.AddCommand(hashL2ToL1Cmd)
	CMD.AddCommand(hashCmd)
	CMD.AddCommand(selectorsCmd)
	CMD.AddCommand(splitCmd)
	CMD.AddCommand(withdrawalCmd)
}
