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

	"github.com/blinklabs-io/vaultguard"
	"github.com/blinklabs-io/vaultguard/common"
	"github.com/blinklabs-io/vaultguard/database"
	"github.com/blinklabs-io/vaultguard/override"
	"github.com/spf13/cobra"
)

func overrideController(n *vaultguard.Node, kind string) (*override.Controller, error) {
	c := n.Override(kind)
	if c == nil {
		return nil, fmt.Errorf("%s controller is not enabled", kind)
	}
	return c, nil
}

func overrideCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Vote on, inspect and lift the veto and freeze overrides",
	}
	cmd.AddCommand(
		overrideVoteCommand(),
		overrideStatusCommand(),
		overrideLiftCommand(),
		overrideConfigCommand(),
	)
	return cmd
}

func overrideVoteCommand() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:       "vote <veto|freeze>",
		Short:     "Cast a vote toward halting execution",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{override.KindVeto, override.KindFreeze},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(n *vaultguard.Node) error {
				c, err := overrideController(n, args[0])
				if err != nil {
					return err
				}
				var res *override.VoteResult
				err = n.Update(func(txn *database.Txn) error {
					var err error
					res, err = c.CastVote(txn, common.Address(caller))
					return err
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(
					cmd.OutOrStdout(),
					"round %d: weight %d, total %d, new round %t, activated %t\n",
					res.Nonce,
					res.Weight,
					res.VoteCount,
					res.NewRound,
					res.Activated,
				)
				return nil
			})
		},
	}
	addCallerFlag(cmd, &caller)
	return cmd
}

func overrideStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "status <veto|freeze>",
		Short:     "Show the state of an override controller",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{override.KindVeto, override.KindFreeze},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(n *vaultguard.Node) error {
				c, err := overrideController(n, args[0])
				if err != nil {
					return err
				}
				return n.View(func(txn *database.Txn) error {
					st, err := c.Status(txn)
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "kind:          %s\n", st.Kind)
					fmt.Fprintf(out, "active:        %t\n", st.Active)
					fmt.Fprintf(out, "auto lifted:   %t\n", st.AutoLifted)
					fmt.Fprintf(out, "last halt:     %d\n", st.LastHaltTimestamp)
					fmt.Fprintf(out, "owner:         %s\n", st.Owner)
					fmt.Fprintf(out, "weight source: %s\n", st.WeightSource)
					fmt.Fprintf(out, "threshold:     %d\n", st.VotesThreshold)
					fmt.Fprintf(out, "round period:  %d\n", st.RoundPeriod)
					fmt.Fprintf(out, "halt duration: %d\n", st.HaltDuration)
					if st.HasRound {
						fmt.Fprintf(
							out,
							"round:         %d started %d votes %d expired %t\n",
							st.Round.Nonce,
							st.Round.CreatedAt,
							st.Round.VoteCount,
							st.Round.Expired,
						)
					}
					return nil
				})
			})
		},
	}
}

func overrideLiftCommand() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:       "lift <veto|freeze>",
		Short:     "Clear an active halt",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{override.KindVeto, override.KindFreeze},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(n *vaultguard.Node) error {
				c, err := overrideController(n, args[0])
				if err != nil {
					return err
				}
				return n.Update(func(txn *database.Txn) error {
					return c.Lift(txn, common.Address(caller))
				})
			})
		},
	}
	addCallerFlag(cmd, &caller)
	return cmd
}

func overrideConfigCommand() *cobra.Command {
	var caller, source string
	var threshold, roundPeriod, haltDuration uint64
	cmd := &cobra.Command{
		Use:       "config <veto|freeze>",
		Short:     "Update the settings of an override controller",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{override.KindVeto, override.KindFreeze},
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return withNode(cmd, func(n *vaultguard.Node) error {
				c, err := overrideController(n, args[0])
				if err != nil {
					return err
				}
				owner := common.Address(caller)
				return n.Update(func(txn *database.Txn) error {
					if flags.Changed("threshold") {
						if err := c.UpdateVotesThreshold(txn, owner, threshold); err != nil {
							return err
						}
					}
					if flags.Changed("round-period") {
						if err := c.UpdateRoundPeriod(txn, owner, roundPeriod); err != nil {
							return err
						}
					}
					if flags.Changed("halt-duration") {
						if err := c.UpdateHaltDuration(txn, owner, haltDuration); err != nil {
							return err
						}
					}
					if flags.Changed("weight-source") {
						if err := c.UpdateWeightSource(txn, owner, source); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	addCallerFlag(cmd, &caller)
	cmd.Flags().Uint64Var(&threshold, "threshold", 0, "votes needed to halt")
	cmd.Flags().Uint64Var(&roundPeriod, "round-period", 0, "round length in seconds")
	cmd.Flags().Uint64Var(&haltDuration, "halt-duration", 0, "seconds until an active halt lifts itself, 0 to disable")
	cmd.Flags().StringVar(&source, "weight-source", "", "name of the weight source")
	return cmd
}
