// Copyright © 2021 Springer Nature Engineering Enablement, Jose Riguera
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

package partnerbundle

import (
	cobra "github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Build the partner package",
	Long: `Build the image, prepare the bundle folder, save the image, write the
compressed partner package and clean the bundle folder`,
	RunE:          prepare,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func prepare(command *cobra.Command, args []string) error {
	from, _ := command.Flags().GetString("from")
	err := program.LoadConfig()
	if err == nil {
		err = program.Prepare(from)
	}
	return err
}

func init() {
	prepareCmd.Flags().StringP("from", "f", "", "Start at this stage (build, compose, save, archive, clean, done)")
	Cmd.AddCommand(prepareCmd)
}
