/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// LevelFlagValue is a pflag.Value that applies the parsed level to its
// logger the moment the flag is set.
type LevelFlagValue struct {
	apply func(zapcore.Level)
	raw   string
}

func NewLevelFlagValue(apply func(zapcore.Level)) LevelFlagValue {
	return LevelFlagValue{apply: apply}
}

// parseLevel accepts a named level (debug, info, error) or a positive
// integer N, mapped onto zap's inverted verbosity scale as level -N.
func parseLevel(value string) (zapcore.Level, error) {
	switch strings.ToLower(value) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", value)
	}
	return zapcore.Level(int8(-n)), nil
}

func (lfv *LevelFlagValue) Set(flagValue string) error {
	level, err := parseLevel(flagValue)
	if err != nil {
		return err
	}

	lfv.apply(level)
	lfv.raw = flagValue
	return nil
}

func (lfv *LevelFlagValue) String() string {
	return lfv.raw
}

func (*LevelFlagValue) Type() string {
	return "level"
}

var _ pflag.Value = &LevelFlagValue{}
