// Package containers starts Docker dependencies for integration tests
// through testcontainers-go:
//
//   - MySQL 8.0, opened through gorm, for the repository tests
//   - Eclipse Mosquitto, for the MQTT alert feed
//
// Containers are shared per test package from TestMain:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(context.Background(), nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Tests using this package carry the "integration" build tag:
//
//	go test -tags=integration ./...
package containers
