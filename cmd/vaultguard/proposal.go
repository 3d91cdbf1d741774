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
	"errors"
	"fmt"
	"strconv"

	"github.com/blinklabs-io/vaultguard"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/governor"
	"github.com/blinklabs-io/vaultguard/strategy"
	"github.com/spf13/cobra"
)

var errLinearDisabled = errors.New("linear strategy is not enabled")

func parseProposalID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal id %q: %w", s, err)
	}
	return id, nil
}

func proposalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposal",
		Short: "Submit, vote on and execute proposals",
	}
	cmd.AddCommand(
		proposalSubmitCommand(),
		proposalStateCommand(),
		proposalListCommand(),
		proposalVoteCommand(),
		proposalResolveCommand(),
		proposalExecuteCommand(),
		proposalConfigCommand(),
	)
	return cmd
}

func proposalSubmitCommand() *cobra.Command {
	var caller, batchPath string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a batch of transactions as a new proposal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, txs, err := loadBatch(batchPath)
			if err != nil {
				return err
			}
			return withNode(cmd, func(n *vaultguard.Node) error {
				var id uint64
				err := n.Update(func(txn *database.Txn) error {
					var err error
					id, err = n.Governor().SubmitProposal(
						cmd.Context(),
						txn,
						txs,
						metadata,
						common.Address(caller),
						nil,
					)
					return err
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "proposal %d submitted with %d transactions\n", id, len(txs))
				return nil
			})
		},
	}
	addCallerFlag(cmd, &caller)
	cmd.Flags().StringVarP(&batchPath, "file", "f", "", "batch file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func proposalStateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "state <id>",
		Short: "Show the state of a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			return withNode(cmd, func(n *vaultguard.Node) error {
				return n.View(func(txn *database.Txn) error {
					p, err := n.Governor().Proposal(txn, id)
					if err != nil {
						return err
					}
					state, err := n.Governor().ProposalState(txn, id)
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "proposal:  %d\n", id)
					fmt.Fprintf(out, "state:     %s\n", state)
					fmt.Fprintf(out, "strategy:  %s\n", p.Strategy)
					fmt.Fprintf(out, "proposer:  %s\n", p.Proposer)
					fmt.Fprintf(out, "executed:  %d/%d\n", p.ExecutionCounter, p.Len())
					fmt.Fprintf(out, "timelock:  %ds\n", p.TimelockPeriod)
					fmt.Fprintf(out, "execution: %ds\n", p.ExecutionPeriod)
					if state != governor.StateActive && state != governor.StateFailed {
						start, err := n.Governor().TimelockStart(txn, id)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "timelock start: %d\n", start)
					}
					return nil
				})
			})
		},
	}
}

func proposalListCommand() *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived proposals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(n *vaultguard.Node) error {
				return n.View(func(txn *database.Txn) error {
					rows, err := n.Governor().ListProposals(txn, offset, limit)
					if err != nil {
						return err
					}
					for _, row := range rows {
						state, err := n.Governor().ProposalState(txn, uint64(row.ProposalID))
						if err != nil {
							return err
						}
						fmt.Fprintf(
							cmd.OutOrStdout(),
							"%d\t%s\t%s\t%s\ttxs=%d\t%s\n",
							row.ProposalID,
							state,
							row.Strategy,
							row.Proposer,
							row.TxCount,
							row.Metadata,
						)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "number of proposals to skip")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of proposals to show")
	return cmd
}

func proposalVoteCommand() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "vote <id> <yes|no|abstain>",
		Short: "Vote on a proposal under the linear strategy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			choice, err := strategy.ParseChoice(args[1])
			if err != nil {
				return err
			}
			return withNode(cmd, func(n *vaultguard.Node) error {
				if n.Linear() == nil {
					return errLinearDisabled
				}
				if err := n.Update(func(txn *database.Txn) error {
					return n.Linear().Vote(txn, id, common.Address(caller), choice)
				}); err != nil {
					return err
				}
				return n.View(func(txn *database.Txn) error {
					tally, err := n.Linear().Tally(txn, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(
						cmd.OutOrStdout(),
						"yes=%d no=%d abstain=%d ends=%d\n",
						tally.Yes,
						tally.No,
						tally.Abstain,
						tally.EndsAt,
					)
					return nil
				})
			})
		},
	}
	addCallerFlag(cmd, &caller)
	return cmd
}

func proposalResolveCommand() *cobra.Command {
	var caller string
	var failed bool
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a proposal under the manual strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			return withNode(cmd, func(n *vaultguard.Node) error {
				return n.Update(func(txn *database.Txn) error {
					return n.Manual().Resolve(txn, common.Address(caller), id, !failed)
				})
			})
		},
	}
	addCallerFlag(cmd, &caller)
	cmd.Flags().BoolVar(&failed, "failed", false, "resolve the proposal as failed")
	return cmd
}

func proposalExecuteCommand() *cobra.Command {
	var caller, batchPath string
	var count int
	cmd := &cobra.Command{
		Use:   "execute <id>",
		Short: "Execute the next transactions of a proposal",
		Long: "Execute the next transactions of a proposal. Without --file the " +
			"transactions are taken from the archive.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProposalID(args[0])
			if err != nil {
				return err
			}
			var fromFile []common.Transaction
			if batchPath != "" {
				if _, fromFile, err = loadBatch(batchPath); err != nil {
					return err
				}
			}
			return withNode(cmd, func(n *vaultguard.Node) error {
				ctx := governor.WithCaller(cmd.Context(), common.Address(caller))
				var executed int
				err := n.Update(func(txn *database.Txn) error {
					txs := fromFile
					if txs == nil {
						p, err := n.Governor().Proposal(txn, id)
						if err != nil {
							return err
						}
						archived, err := n.Database().GetProposal(id, txn)
						if err != nil {
							return err
						}
						txs, err = pendingTransactions(archived, p.ExecutionCounter)
						if err != nil {
							return err
						}
					}
					if count > 0 && count < len(txs) {
						txs = txs[:count]
					}
					executed = len(txs)
					return n.Governor().ExecuteProposal(ctx, txn, id, txs)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "executed %d transactions of proposal %d\n", executed, id)
				return nil
			})
		},
	}
	addCallerFlag(cmd, &caller)
	cmd.Flags().StringVarP(&batchPath, "file", "f", "", "batch file (YAML) holding the next transactions")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "execute at most this many transactions, 0 for all")
	return cmd
}

func proposalConfigCommand() *cobra.Command {
	var caller, strategyName string
	var timelock, execution uint64
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update the defaults applied to new proposals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return withNode(cmd, func(n *vaultguard.Node) error {
				g := n.Governor()
				owner := common.Address(caller)
				err := n.Update(func(txn *database.Txn) error {
					if flags.Changed("timelock") {
						if err := g.UpdateTimelockPeriod(txn, owner, timelock); err != nil {
							return err
						}
					}
					if flags.Changed("execution") {
						if err := g.UpdateExecutionPeriod(txn, owner, execution); err != nil {
							return err
						}
					}
					if flags.Changed("strategy") {
						if err := g.UpdateStrategy(txn, owner, strategyName); err != nil {
							return err
						}
					}
					return nil
				})
				if err != nil {
					return err
				}
				return n.View(func(txn *database.Txn) error {
					settings, err := g.Config(txn)
					if err != nil {
						return err
					}
					fmt.Fprintf(
						cmd.OutOrStdout(),
						"timelock=%d execution=%d strategy=%s\n",
						settings.TimelockPeriod,
						settings.ExecutionPeriod,
						settings.Strategy,
					)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "address the update is performed as")
	cmd.Flags().Uint64Var(&timelock, "timelock", 0, "new timelock period in seconds")
	cmd.Flags().Uint64Var(&execution, "execution", 0, "new execution period in seconds")
	cmd.Flags().StringVar(&strategyName, "strategy", "", "new default strategy")
	return cmd
}
