// Copyright 2023 Intel Corporation. All Rights Reserved.
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

package thpadvisor

import (
	"encoding/json"
	"fmt"

	"golang.org/x/sys/unix"
)

type EmitterSyscallConfig struct {
	SysNr int // number of the huge page hint syscall
}

// EmitterSyscall delivers hints through the huge page hint syscall of
// a patched kernel. The syscall number is configurable because the
// patch is not part of mainline and the number varies between kernel
// trees.
type EmitterSyscall struct {
	config *EmitterSyscallConfig
}

func init() {
	EmitterRegister("syscall", NewEmitterSyscall)
}

func NewEmitterSyscall() (HintEmitter, error) {
	e := &EmitterSyscall{}
	if err := e.SetConfigJson(""); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *EmitterSyscall) SetConfigJson(configJson string) error {
	config := &EmitterSyscallConfig{}
	if err := unmarshal(configJson, config); err != nil {
		return err
	}
	if config.SysNr == 0 {
		config.SysNr = 325
	}
	if config.SysNr < 0 {
		return fmt.Errorf("invalid SysNr: %d, > 0 expected", config.SysNr)
	}
	e.config = config
	return nil
}

func (e *EmitterSyscall) GetConfigJson() string {
	if e.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(e.config); err == nil {
		return string(configStr)
	}
	return ""
}

func (e *EmitterSyscall) Emit(pid int, value int) error {
	_, _, errno := unix.Syscall(uintptr(e.config.SysNr), uintptr(pid), uintptr(value), 0)
	if errno != 0 {
		return fmt.Errorf("hint syscall %d for pid %d: %w", e.config.SysNr, pid, errno)
	}
	return nil
}

func (e *EmitterSyscall) Dump(args []string) string {
	return fmt.Sprintf("%+v", e)
}
