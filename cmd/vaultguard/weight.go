// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"strconv"

	"github.com/blinklabs-io/vaultguard"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/spf13/cobra"
)

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

func weightCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weight",
		Short: "Inspect and seed the voting weight ledger",
	}
	cmd.AddCommand(weightSeedCommand(), weightShowCommand())
	return cmd
}

func weightSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <address> <amount>",
		Short: "Set a starting balance without history",
		Long: "Set a starting balance without history. Intended for bootstrapping " +
			"a fresh database, later changes go through proposals targeting the ledger.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withNode(cmd, func(n *vaultguard.Node) error {
				return n.Update(func(txn *database.Txn) error {
					return n.Ledger().SeedBalance(txn, common.Address(args[0]), amount)
				})
			})
		},
	}
}

func weightShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <address>",
		Short: "Show a balance and its checkpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			voter := common.Address(args[0])
			return withNode(cmd, func(n *vaultguard.Node) error {
				return n.View(func(txn *database.Txn) error {
					bal, err := n.Ledger().CurrentWeight(txn, voter)
					if err != nil {
						return err
					}
					total, err := n.Ledger().TotalSupply(txn)
					if err != nil {
						return err
					}
					ckpts, err := n.Ledger().Checkpoints(txn, voter)
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "balance: %d of %d\n", bal, total)
					for _, c := range ckpts {
						fmt.Fprintf(out, "  at %d: %d\n", c.Timestamp, c.Balance)
					}
					return nil
				})
			})
		},
	}
}

func vaultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Fund and inspect the vault",
	}
	cmd.AddCommand(vaultDepositCommand(), vaultBalanceCommand())
	return cmd
}

func vaultDepositCommand() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Add funds to the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return withNode(cmd, func(n *vaultguard.Node) error {
				return n.Update(func(txn *database.Txn) error {
					return n.Vault().Deposit(txn, common.Address(caller), amount)
				})
			})
		},
	}
	addCallerFlag(cmd, &caller)
	return cmd
}

func vaultBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the vault balance, or what it has paid to an address",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(n *vaultguard.Node) error {
				return n.View(func(txn *database.Txn) error {
					var v uint64
					var err error
					if len(args) == 1 {
						v, err = n.Vault().Payouts(txn, common.Address(args[0]))
					} else {
						v, err = n.Vault().Balance(txn)
					}
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), v)
					return nil
				})
			})
		},
	}
}
