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

package badger

import (
	"fmt"
	"log/slog"
	"strings"
)

// BadgerLogger routes badger's printf-style logging into slog
type BadgerLogger struct {
	logger *slog.Logger
}

func NewBadgerLogger(logger *slog.Logger) *BadgerLogger {
	return &BadgerLogger{logger: logger}
}

func (b *BadgerLogger) msg(format string, args ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}

func (b *BadgerLogger) Errorf(format string, args ...any) {
	b.logger.Error(b.msg(format, args...), "component", "database")
}

func (b *BadgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn(b.msg(format, args...), "component", "database")
}

func (b *BadgerLogger) Infof(format string, args ...any) {
	b.logger.Info(b.msg(format, args...), "component", "database")
}

func (b *BadgerLogger) Debugf(format string, args ...any) {
	b.logger.Debug(b.msg(format, args...), "component", "database")
}
