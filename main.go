package main

import "github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/app"

// @title           Pyncer Access Recovery API
// @version         1.0
// @description     Двухфазный поток восстановления пароля: запрос кода и подтверждение.
// @BasePath        /
func main() {
	app.Run()
}
