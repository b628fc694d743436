package main

import "testing"

func Test_parseArgs(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		want    args
		wantErr bool
	}{
		{
			name: "defaults",
			want: args{host: "127.0.0.1", port: 0xCAFE, format: "hex"},
		},
		{
			name: "host and port",
			argv: []string{"-H", "192.168.4.1", "-p", "10007", "--send"},
			want: args{host: "192.168.4.1", port: 10007, format: "hex", send: true},
		},
		{
			name: "format",
			argv: []string{"--format", "dump"},
			want: args{host: "127.0.0.1", port: 0xCAFE, format: "dump"},
		},
		{
			name:    "port out of range",
			argv:    []string{"-p", "70000"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := parseArgs(tt.argv)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseArgs() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
