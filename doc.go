// Package ftplist retrieves a directory listing from an FTP server over a
// passive-mode data connection.
//
// # Overview
//
// A session follows one fixed sequence of steps:
//
//	connect      read the 220 greeting
//	USER/PASS    anonymous login
//	PASV         parse (h1,h2,h3,h4,p1,p2) and open the data connection
//	LIST         the listing arrives on the data connection
//	QUIT         close everything
//
// Each step moves the Session to the next State. When a step fails, the data
// connection and the control connection are closed before Run returns.
//
// # Basic Usage
//
//	listing, err := ftplist.List(ctx, ftplist.Config{Host: "ftp.freebsd.org"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.Stdout.Write(listing)
//
// # Building Blocks
//
// The channels can also be driven by hand:
//
//	ch, err := ftplist.Connect(ctx, "ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
//
//	greeting, _ := ch.ReadGreeting()
//	fmt.Println(greeting.Code)
//
//	resp, _ := ch.Send("PASV")
//	ep, err := ftplist.ParsePassiveReply(resp.Text())
//
// # Replies
//
// Replies are parsed following RFC 959: every line starts with a three-digit
// code, a '-' after the code continues the reply and the final line repeats
// the code of the first line followed by a space. A reply that breaks these
// rules fails with a *ProtocolError.
//
// # Errors
//
// Failures are reported as one of:
//
//   - *ConnectionError: the control or data socket could not be opened
//   - *ProtocolError: a reply or PASV tuple could not be parsed
//   - *IoError: a read or write failed on an open socket
//   - *ReplyError: a reply carried an unexpected code (see WithStrictReplies)
//
// Use errors.As to inspect them:
//
//	var perr *ftplist.ProtocolError
//	if errors.As(err, &perr) {
//	    fmt.Println("bad reply to", perr.Command)
//	}
//
// # Timeouts
//
// WithTimeout (30 seconds by default) bounds connecting and every single
// read or write on both connections. Canceling the context passed to Run
// closes the connections immediately.
//
// # Logging
//
// The session reports its progress to an Observer. WithLogger adapts a
// *slog.Logger; passwords never reach the observer.
package ftplist
