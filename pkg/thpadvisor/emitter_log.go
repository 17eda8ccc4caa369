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
	"fmt"
)

// EmitterLog writes hints to the log instead of the kernel. Useful for
// dry runs on kernels without the hint syscall.
type EmitterLog struct {
	emitted uint64
}

func init() {
	EmitterRegister("log", NewEmitterLog)
}

func NewEmitterLog() (HintEmitter, error) {
	return &EmitterLog{}, nil
}

func (e *EmitterLog) SetConfigJson(configJson string) error {
	return unmarshal(configJson, &struct{}{})
}

func (e *EmitterLog) GetConfigJson() string {
	return ""
}

func (e *EmitterLog) Emit(pid int, value int) error {
	e.emitted++
	log.Info("hint: pid %d value %d", pid, value)
	return nil
}

func (e *EmitterLog) Dump(args []string) string {
	return fmt.Sprintf("%+v", e)
}
